package campaign

import (
	"context"
	"errors"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/browser"
)

// FailureKind is the closed taxonomy attempts are classified into, resolved
// once at the boundary between the driver and the executor. Raw driver
// errors never travel further up.
type FailureKind string

const (
	// FailureTransientUI: element missing or not interactable. Retry
	// immediately on the same surface.
	FailureTransientUI FailureKind = "transient_ui"
	// FailureSessionCrashed: the page or tab is gone but the browser
	// survives. Acquire a fresh surface and retry.
	FailureSessionCrashed FailureKind = "session_crashed"
	// FailureUnverifiable: the interaction may have landed but its effect
	// cannot be confirmed (timeout on the progress side). Counts as
	// NoChange, never as Failed.
	FailureUnverifiable FailureKind = "unverifiable"
	// FailureFatal: the whole browser session is gone. Bypasses remaining
	// local retries and escalates.
	FailureFatal FailureKind = "fatal"
)

// Classify maps a raw attempt error into the taxonomy. Unknown errors are
// treated as transient UI trouble: the retry budget bounds the damage and
// most unrecognized driver noise is exactly that.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, browser.ErrSessionClosed):
		return FailureFatal
	case errors.Is(err, browser.ErrTargetClosed), errors.Is(err, browser.ErrNoSurface):
		return FailureSessionCrashed
	case errors.Is(err, context.DeadlineExceeded):
		return FailureUnverifiable
	case errors.Is(err, browser.ErrElementNotFound):
		return FailureTransientUI
	default:
		return FailureTransientUI
	}
}
