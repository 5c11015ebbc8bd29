package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/calmpoint/counselbook/internal/schedule"
)

func TestWriteEngineErrorMapping(t *testing.T) {
	logger := slog.Default()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &schedule.ValidationError{Field: "time", Msg: "must be set"}, 400},
		{"not found", fmt.Errorf("service %q: %w", "svc-1", schedule.ErrNotFound), 404},
		{"terminal status", fmt.Errorf("reschedule: %w", schedule.ErrTerminalStatus), 409},
		{"conflict", &schedule.ConflictError{Code: schedule.CodeBooked, Reason: "Time slot unavailable"}, 409},
		{"unknown", fmt.Errorf("connection reset"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rw := httptest.NewRecorder()
			writeEngineError(rw, logger, tc.err)
			if rw.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rw.Code)
			}
		})
	}
}

func TestWriteEngineErrorConflictBody(t *testing.T) {
	rw := httptest.NewRecorder()
	writeEngineError(rw, slog.Default(), &schedule.ConflictError{
		Code:   schedule.CodeBlocked,
		Reason: "Time slot unavailable",
	})

	var body conflictResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid conflict body: %v", err)
	}
	if body.Code != "blocked" {
		t.Fatalf("expected code blocked, got %q", body.Code)
	}
	if body.Error != "Time slot unavailable" {
		t.Fatalf("unexpected error text %q", body.Error)
	}
}
