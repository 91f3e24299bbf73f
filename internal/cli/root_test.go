package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ZhaohnNwafu/Autom6A/internal/pipeline"
	"github.com/ZhaohnNwafu/Autom6A/internal/runstate"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "configuration error",
			err:  &pipeline.ConfigError{Err: fmt.Errorf("unknown runtime context")},
			want: 2,
		},
		{
			name: "wrapped configuration error",
			err:  fmt.Errorf("running: %w", &pipeline.ConfigError{Err: fmt.Errorf("missing executable")}),
			want: 2,
		},
		{
			name: "stage failure after retries",
			err:  &pipeline.StageFailedError{Stage: "basecall", Attempts: 3, Kind: runstate.FailureProcess},
			want: 1,
		},
		{
			name: "cancellation",
			err:  &pipeline.CanceledError{Stage: "align"},
			want: 3,
		},
		{
			name: "bare context cancellation",
			err:  context.Canceled,
			want: 3,
		},
		{
			name: "generic error",
			err:  errors.New("boom"),
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
