// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/streamforge/discovery/internal/store"
)

type fakeDevices struct {
	byKey map[string]store.Device
}

func newFakeDevices(devs ...store.Device) *fakeDevices {
	f := &fakeDevices{byKey: make(map[string]store.Device)}
	for _, d := range devs {
		f.byKey[d.UserID+"/"+d.DeviceID] = d
	}
	return f
}

func (f *fakeDevices) GetDevice(_ context.Context, userID, deviceID string) (*store.Device, error) {
	d, ok := f.byKey[userID+"/"+deviceID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

type fakePublisher struct {
	published []*message.Message
	topics    []string
	fail      bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, msg *message.Message) error {
	if f.fail {
		return errors.New("publish failed")
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, msg)
	return nil
}

func onlineControllable(userID, deviceID string) store.Device {
	return store.Device{UserID: userID, DeviceID: deviceID, IsOnline: true, RemoteControllable: true}
}

func TestValidateExpiredCommandFailsFast(t *testing.T) {
	target := onlineControllable("u1", "tv")
	cmd := Command{
		UserID: "u1", TargetDeviceID: "tv", Type: Play,
		CreatedAt: time.Unix(0, 0), TTL: 5 * time.Second,
	}
	err := Validate(cmd, nil, &target, time.Unix(100, 0))
	if err == nil || err.Reason != FailureExpired {
		t.Fatalf("expected expired failure, got %v", err)
	}
}

func TestValidateOfflineTargetFailsFast(t *testing.T) {
	now := time.Now()
	target := store.Device{UserID: "u1", DeviceID: "tv", IsOnline: false, RemoteControllable: true}
	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Play, CreatedAt: now, TTL: 5 * time.Second}
	err := Validate(cmd, nil, &target, now)
	if err == nil || err.Reason != FailureDeviceOffline {
		t.Fatalf("expected device-offline failure, got %v", err)
	}
}

func TestValidateUnregisteredTarget(t *testing.T) {
	now := time.Now()
	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Play, CreatedAt: now, TTL: 5 * time.Second}
	err := Validate(cmd, nil, nil, now)
	if err == nil || err.Reason != FailureDeviceOffline {
		t.Fatalf("expected device-offline failure for unregistered target, got %v", err)
	}
}

func TestValidateVolumeOutOfRange(t *testing.T) {
	now := time.Now()
	target := onlineControllable("u1", "tv")
	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: VolumeSet, VolumeLevel: 1.5, CreatedAt: now, TTL: 5 * time.Second}
	err := Validate(cmd, nil, &target, now)
	if err == nil || err.Reason != FailureInvalidParameters {
		t.Fatalf("expected invalid-parameters for out-of-range volume, got %v", err)
	}
}

func TestValidateSeekNegative(t *testing.T) {
	now := time.Now()
	target := onlineControllable("u1", "tv")
	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Seek, SeekSeconds: -1, CreatedAt: now, TTL: 5 * time.Second}
	err := Validate(cmd, nil, &target, now)
	if err == nil || err.Reason != FailureInvalidParameters {
		t.Fatalf("expected invalid-parameters for negative seek, got %v", err)
	}
}

func TestValidateCastRequiresSourceCanCast(t *testing.T) {
	now := time.Now()
	source := store.Device{UserID: "u1", DeviceID: "phone", IsOnline: true, CanCast: false}
	target := onlineControllable("u1", "tv")
	cmd := Command{
		UserID: "u1", SourceDeviceID: "phone", TargetDeviceID: "tv", Type: CastTo,
		ContentID: "c1", CastToDeviceID: "tv", CreatedAt: now, TTL: 5 * time.Second,
	}
	err := Validate(cmd, &source, &target, now)
	if err == nil || err.Reason != FailureNotSupported {
		t.Fatalf("expected not-supported when source cannot cast, got %v", err)
	}
}

func TestValidateCastSucceedsWhenSourceCanCast(t *testing.T) {
	now := time.Now()
	source := store.Device{UserID: "u1", DeviceID: "phone", IsOnline: true, CanCast: true}
	target := onlineControllable("u1", "tv")
	cmd := Command{
		UserID: "u1", SourceDeviceID: "phone", TargetDeviceID: "tv", Type: CastTo,
		ContentID: "c1", CastToDeviceID: "tv", CreatedAt: now, TTL: 5 * time.Second,
	}
	if err := Validate(cmd, &source, &target, now); err != nil {
		t.Fatalf("expected cast to validate, got %v", err)
	}
}

func TestValidateNotRemoteControllable(t *testing.T) {
	now := time.Now()
	target := store.Device{UserID: "u1", DeviceID: "tv", IsOnline: true, RemoteControllable: false}
	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Pause, CreatedAt: now, TTL: 5 * time.Second}
	err := Validate(cmd, nil, &target, now)
	if err == nil || err.Reason != FailureNotSupported {
		t.Fatalf("expected not-supported, got %v", err)
	}
}

func TestDispatchPublishesValidCommand(t *testing.T) {
	target := onlineControllable("u1", "tv")
	devices := newFakeDevices(target)
	pub := &fakePublisher{}
	r := New(devices, pub, nil, 5*time.Second, 5*time.Second, 30*time.Second)

	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Play}
	if err := r.Dispatch(context.Background(), cmd); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.published))
	}
	if pub.topics[0] != "user.u1.devices" {
		t.Fatalf("unexpected topic: %s", pub.topics[0])
	}

	r.mu.Lock()
	n := len(r.pending)
	r.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected one pending ack, got %d", n)
	}
}

func TestDispatchRejectsInvalidWithoutPublishing(t *testing.T) {
	devices := newFakeDevices() // no devices registered
	pub := &fakePublisher{}
	r := New(devices, pub, nil, 5*time.Second, 5*time.Second, 30*time.Second)

	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Play}
	err := r.Dispatch(context.Background(), cmd)
	var rerr *Error
	if err == nil || !errors.As(err, &rerr) || rerr.Reason != FailureDeviceOffline {
		t.Fatalf("expected device-offline *Error, got %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatal("expected no publish for a rejected command")
	}
}

func TestAckClearsPending(t *testing.T) {
	target := onlineControllable("u1", "tv")
	devices := newFakeDevices(target)
	pub := &fakePublisher{}
	r := New(devices, pub, nil, 5*time.Second, 5*time.Second, 30*time.Second)

	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Play}
	if err := r.Dispatch(context.Background(), cmd); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	r.mu.Lock()
	var id string
	for k := range r.pending {
		id = k
	}
	r.mu.Unlock()

	r.Ack(Ack{CommandID: id, DeviceID: "tv", AckedAt: time.Now()})

	r.mu.Lock()
	n := len(r.pending)
	r.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected ack to clear pending entry, got %d remaining", n)
	}
}

func TestSweepStaleRemovesOldEntriesOnly(t *testing.T) {
	target := onlineControllable("u1", "tv")
	devices := newFakeDevices(target)
	pub := &fakePublisher{}
	r := New(devices, pub, nil, 5*time.Second, 5*time.Second, 30*time.Second)

	base := time.Now()
	r.mu.Lock()
	r.pending["old"] = pendingAck{command: Command{Type: Play}, issuedAt: base.Add(-31 * time.Second)}
	r.pending["fresh"] = pendingAck{command: Command{Type: Pause}, issuedAt: base}
	r.mu.Unlock()

	swept := r.SweepStale(base)
	if len(swept) != 1 || swept[0] != "old" {
		t.Fatalf("expected only 'old' to be swept, got %v", swept)
	}

	r.mu.Lock()
	_, freshStillPending := r.pending["fresh"]
	r.mu.Unlock()
	if !freshStillPending {
		t.Fatal("expected fresh entry to remain pending")
	}
}

func TestDispatchGeneratesIDWhenMissing(t *testing.T) {
	target := onlineControllable("u1", "tv")
	devices := newFakeDevices(target)
	pub := &fakePublisher{}
	r := New(devices, pub, nil, 5*time.Second, 5*time.Second, 30*time.Second)

	cmd := Command{UserID: "u1", TargetDeviceID: "tv", Type: Stop}
	if err := r.Dispatch(context.Background(), cmd); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pa := range r.pending {
		if id == "" {
			t.Fatal("expected a generated command id")
		}
		if pa.command.ID != id {
			t.Fatalf("pending key %q does not match stored command id %q", id, pa.command.ID)
		}
	}
}
