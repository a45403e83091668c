// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package personalize

// InteractionKind classifies the engagement event a rating is derived from.
type InteractionKind string

const (
	KindCompletion InteractionKind = "completion"
	KindLike       InteractionKind = "like"
	KindDislike    InteractionKind = "dislike"
	KindExplicit   InteractionKind = "explicit_rating"
	KindProgress   InteractionKind = "progress"
)

// Interaction is one observed engagement event, normalized to a [0,1]
// implicit rating and confidence per spec.md §4.D's derivation rules.
type Interaction struct {
	UserID    string
	ContentID string
	Kind      InteractionKind

	// ExplicitRating is a 1-5 star rating, used only when Kind is
	// KindExplicit.
	ExplicitRating float64

	// Progress is the watched fraction [0,1], used only when Kind is
	// KindProgress.
	Progress float64
}

// DeriveRating maps an interaction to the implicit [0,1] rating ALS trains
// against:
//
//	completion    -> 1.0
//	like          -> 1.0
//	dislike       -> 0.0
//	explicit r    -> r / 5
//	progress p    -> 1.0 if p >= 0.9, 0.5 if p >= 0.5, else 0.2
func DeriveRating(i Interaction) float64 {
	switch i.Kind {
	case KindCompletion, KindLike:
		return 1.0
	case KindDislike:
		return 0.0
	case KindExplicit:
		r := i.ExplicitRating / 5.0
		return clamp01(r)
	case KindProgress:
		switch {
		case i.Progress >= 0.9:
			return 1.0
		case i.Progress >= 0.5:
			return 0.5
		default:
			return 0.2
		}
	default:
		return 0.0
	}
}

// Confidence turns a derived rating into the implicit-feedback confidence
// weight ALS trains with: c = 1 + alpha*r, per recommend/algorithms' ALS.
func Confidence(rating, alpha float64) float64 {
	return 1.0 + alpha*rating
}

// InteractionFromWatchHistory classifies a raw watch-history row as a
// KindProgress interaction, the one engagement signal internal/store
// currently captures in bulk.
func InteractionFromWatchHistory(userID, contentID string, positionSeconds, durationSeconds float64) Interaction {
	var progress float64
	if durationSeconds > 0 {
		progress = positionSeconds / durationSeconds
	}
	return Interaction{
		UserID:    userID,
		ContentID: contentID,
		Kind:      KindProgress,
		Progress:  clamp01(progress),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
