package domain

import "testing"

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{"pending to processing", JobPending, JobProcessing, true},
		{"pending to failed", JobPending, JobFailed, true},
		{"pending to completed", JobPending, JobCompleted, false},
		{"processing to needs_review", JobProcessing, JobNeedsReview, true},
		{"processing to completed", JobProcessing, JobCompleted, true},
		{"processing to failed", JobProcessing, JobFailed, true},
		{"needs_review to processing", JobNeedsReview, JobProcessing, true},
		{"needs_review to completed", JobNeedsReview, JobCompleted, false},
		{"failed to processing", JobFailed, JobProcessing, true},
		{"failed to completed", JobFailed, JobCompleted, false},
		{"completed is terminal", JobCompleted, JobProcessing, false},
		{"completed to failed rejected", JobCompleted, JobFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestJobStatusSelfTransition(t *testing.T) {
	for _, s := range []JobStatus{JobPending, JobProcessing, JobNeedsReview, JobCompleted, JobFailed} {
		if !s.CanTransitionTo(s) {
			t.Errorf("%s -> %s should be legal (redelivery no-op)", s, s)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if !JobCompleted.Terminal() {
		t.Error("COMPLETED should be terminal")
	}
	for _, s := range []JobStatus{JobPending, JobProcessing, JobNeedsReview, JobFailed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
