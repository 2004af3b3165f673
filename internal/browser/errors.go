package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

// Sentinel errors resolved once at the driver boundary. The campaign layer's
// failure classifier only ever sees these plus context errors; raw rod and
// CDP errors never leak past this package.
var (
	// ErrElementNotFound covers missing or not-yet-interactable elements.
	ErrElementNotFound = errors.New("browser: element not found")
	// ErrTargetClosed means the page or tab is gone but the browser survives.
	ErrTargetClosed = errors.New("browser: target closed")
	// ErrSessionClosed means the whole browser session is unusable.
	ErrSessionClosed = errors.New("browser: session closed")
	// ErrNoSurface means LatestSurface found no page to attach to.
	ErrNoSurface = errors.New("browser: no interaction surface available")
)

// mapError folds a raw rod/CDP error into the sentinel taxonomy, keeping the
// original in the chain for logs.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return wrap(ErrElementNotFound, err)
	}
	var invisible *rod.InvisibleShapeError
	if errors.As(err, &invisible) {
		return wrap(ErrElementNotFound, err)
	}
	var covered *rod.CoveredError
	if errors.As(err, &covered) {
		return wrap(ErrElementNotFound, err)
	}
	var notInteractable *rod.NotInteractableError
	if errors.As(err, &notInteractable) {
		return wrap(ErrElementNotFound, err)
	}

	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		msg := strings.ToLower(cdpErr.Message)
		switch {
		case strings.Contains(msg, "session closed"), strings.Contains(msg, "browser has been closed"):
			return wrap(ErrSessionClosed, err)
		case strings.Contains(msg, "target closed"), strings.Contains(msg, "no target"),
			strings.Contains(msg, "target crashed"), strings.Contains(msg, "cannot find context"):
			return wrap(ErrTargetClosed, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "websocket") && strings.Contains(msg, "closed"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "browser has been closed"):
		return wrap(ErrSessionClosed, err)
	case strings.Contains(msg, "target closed"), strings.Contains(msg, "page closed"):
		return wrap(ErrTargetClosed, err)
	}
	return err
}

type wrapped struct {
	sentinel error
	cause    error
}

func wrap(sentinel, cause error) error { return &wrapped{sentinel: sentinel, cause: cause} }

func (w *wrapped) Error() string { return w.sentinel.Error() + ": " + w.cause.Error() }

func (w *wrapped) Is(target error) bool { return errors.Is(w.sentinel, target) }

func (w *wrapped) Unwrap() error { return w.cause }
