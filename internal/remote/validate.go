// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"errors"
	"time"

	"github.com/streamforge/discovery/internal/store"
)

// Validate checks cmd against spec.md §4.G's three-step validation
// sequence: not expired, target registered and online, and target
// capability permits the command. source may be nil only for commands
// that don't require capability checks on the issuing device (everything
// but CastTo).
func Validate(cmd Command, source, target *store.Device, now time.Time) *Error {
	if cmd.Expired(now) {
		return fail(FailureExpired, errors.New("command ttl elapsed"))
	}

	if target == nil {
		return fail(FailureDeviceOffline, errors.New("target device not registered"))
	}
	if !target.IsOnline {
		return fail(FailureDeviceOffline, errors.New("target device offline"))
	}

	switch cmd.Type {
	case VolumeSet:
		if cmd.VolumeLevel < 0 || cmd.VolumeLevel > 1 {
			return fail(FailureInvalidParameters, errors.New("volume level out of [0,1] range"))
		}
	case Seek:
		if cmd.SeekSeconds < 0 {
			return fail(FailureInvalidParameters, errors.New("seek seconds must be non-negative"))
		}
	case LoadContent:
		if cmd.ContentID == "" {
			return fail(FailureInvalidParameters, errors.New("load_content requires a content id"))
		}
	case CastTo:
		if cmd.ContentID == "" || cmd.CastToDeviceID == "" {
			return fail(FailureInvalidParameters, errors.New("cast_to requires a content id and a cast target device id"))
		}
		if source == nil || !source.CanCast {
			return fail(FailureNotSupported, errors.New("source device cannot cast"))
		}
		if cmd.CastToDeviceID != target.DeviceID {
			return fail(FailureInvalidParameters, errors.New("cast target must match the command's target device"))
		}
	case Play, Pause, Stop, Mute, Unmute:
		// Universally supported; no further capability check.
	default:
		return fail(FailureInvalidParameters, errors.New("unknown command type"))
	}

	if !target.RemoteControllable {
		return fail(FailureNotSupported, errors.New("target device is not remote-controllable"))
	}
	return nil
}
