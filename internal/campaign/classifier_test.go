package campaign

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/browser"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"session closed", browser.ErrSessionClosed, FailureFatal},
		{"wrapped session closed", fmt.Errorf("term %q: %w", "x", browser.ErrSessionClosed), FailureFatal},
		{"target closed", browser.ErrTargetClosed, FailureSessionCrashed},
		{"no surface", browser.ErrNoSurface, FailureSessionCrashed},
		{"deadline", context.DeadlineExceeded, FailureUnverifiable},
		{"element missing", browser.ErrElementNotFound, FailureTransientUI},
		{"unknown noise", errors.New("net::ERR_SOMETHING odd"), FailureTransientUI},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
