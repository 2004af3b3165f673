package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

func TestMapErrorRodElementErrors(t *testing.T) {
	cases := []error{
		&rod.ElementNotFoundError{},
		&rod.InvisibleShapeError{},
		&rod.CoveredError{},
		&rod.NotInteractableError{},
	}
	for _, raw := range cases {
		mapped := mapError(raw)
		if !errors.Is(mapped, ErrElementNotFound) {
			t.Errorf("mapError(%T) = %v, want ErrElementNotFound", raw, mapped)
		}
		// The raw cause stays in the chain for logs.
		if !errors.Is(mapped, raw) {
			t.Errorf("mapError(%T) lost the original error", raw)
		}
	}
}

func TestMapErrorCDPMessages(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"Session closed. Most likely the page has been closed", ErrSessionClosed},
		{"Browser has been closed", ErrSessionClosed},
		{"Target closed", ErrTargetClosed},
		{"No target with given id found", ErrTargetClosed},
		{"Target crashed", ErrTargetClosed},
		{"Cannot find context with specified id", ErrTargetClosed},
	}
	for _, tc := range cases {
		raw := &cdp.Error{Message: tc.msg}
		if mapped := mapError(raw); !errors.Is(mapped, tc.want) {
			t.Errorf("mapError(cdp %q) = %v, want %v", tc.msg, mapped, tc.want)
		}
	}
}

func TestMapErrorStringFallbacks(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{errors.New("websocket: close 1006 (abnormal closure)"), ErrSessionClosed},
		{errors.New("read tcp: connection reset by peer"), ErrSessionClosed},
		{errors.New("page closed mid flight"), ErrTargetClosed},
	}
	for _, tc := range cases {
		if mapped := mapError(tc.err); !errors.Is(mapped, tc.want) {
			t.Errorf("mapError(%v) = %v, want %v", tc.err, mapped, tc.want)
		}
	}
}

func TestMapErrorPassesThroughContextAndUnknown(t *testing.T) {
	if got := mapError(context.Canceled); got != context.Canceled {
		t.Errorf("context.Canceled mapped to %v", got)
	}
	if got := mapError(context.DeadlineExceeded); got != context.DeadlineExceeded {
		t.Errorf("context.DeadlineExceeded mapped to %v", got)
	}
	odd := fmt.Errorf("some completely unrelated failure")
	if got := mapError(odd); got != odd {
		t.Errorf("unknown error rewritten to %v", got)
	}
	if mapError(nil) != nil {
		t.Error("nil must map to nil")
	}
}
