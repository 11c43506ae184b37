package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"scenecast/generation"
)

type fakeSubmitter struct {
	calls []string
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, assetID string, ts float64) (string, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s@%v", assetID, ts))
	return "req-1", f.err
}

func TestGenerationHandler(t *testing.T) {
	cases := []struct {
		name      string
		message   string
		submitErr error
		wantMark  bool
		wantErr   bool
		wantCalls int
	}{
		{"valid", `{"asset_id":"a1","timestamp":40}`, nil, true, false, 1},
		{"zero timestamp is valid", `{"asset_id":"a1","timestamp":0}`, nil, true, false, 1},
		{"duplicate is merged", `{"asset_id":"a1","timestamp":40}`, generation.ErrDuplicateInFlight, true, false, 1},
		{"invalid timestamp dropped", `{"asset_id":"a1","timestamp":-3}`, fmt.Errorf("wrap: %w", generation.ErrInvalidTimestamp), true, false, 1},
		{"unknown asset dropped", `{"asset_id":"zz","timestamp":3}`, generation.ErrNotFound, true, false, 1},
		{"transient error retried", `{"asset_id":"a1","timestamp":40}`, errors.New("shutting down"), false, true, 1},
		{"missing timestamp", `{"asset_id":"a1"}`, nil, true, false, 0},
		{"missing asset", `{"timestamp":12}`, nil, true, false, 0},
		{"not json", `{{`, nil, true, false, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := &fakeSubmitter{err: c.submitErr}
			h := NewGenerationHandler(s)

			mark, err := h.HandleMessage(context.Background(), []byte(c.message))
			if mark != c.wantMark {
				t.Errorf("mark = %v; want %v", mark, c.wantMark)
			}
			if (err != nil) != c.wantErr {
				t.Errorf("err = %v; wantErr %v", err, c.wantErr)
			}
			if len(s.calls) != c.wantCalls {
				t.Errorf("submit calls = %v; want %d", s.calls, c.wantCalls)
			}
		})
	}
}
