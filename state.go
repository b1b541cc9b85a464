package facemark

import "image"

// State enumerates the states of an edit session.
type State int32

const (
	StateUninitialized State = iota
	StateLoadingModel
	StateReady
	StateDetectingPreview
	StateIdle
	StateDetectingFull
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoadingModel:
		return "loading-model"
	case StateReady:
		return "ready"
	case StateDetectingPreview:
		return "detecting-preview"
	case StateIdle:
		return "idle"
	case StateDetectingFull:
		return "detecting-full"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Interactive reports whether accept and decline are enabled in the state.
func (s State) Interactive() bool {
	return s == StateReady || s == StateIdle
}

// StateListener is called on each state transition, on the session goroutine.
type StateListener func(prev, next State)

// Scaffold is the host accept/decline surface driven by the session.
// All methods are called from the session goroutine.
type Scaffold interface {
	SetInteractionEnabled(enabled bool)
	ShowTransientMessage(text string)
	UpdateThumbnail(img image.Image)
	// OnAccept commits the edit. Called at most once, after the full pass.
	OnAccept()
	// OnDecline discards the edit.
	OnDecline()
}
