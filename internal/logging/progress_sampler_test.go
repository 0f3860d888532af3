package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "transcribing") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Sequence(t *testing.T) {
	type step struct {
		percent float64
		phase   string
		want    bool
	}
	tests := []struct {
		name   string
		bucket float64
		steps  []step
	}{
		{
			name:   "percent buckets",
			bucket: 5,
			steps: []step{
				{0, "exporting", true},
				{3, "exporting", false},
				{5, "exporting", true},
				{7, "exporting", false},
				{10, "exporting", true},
			},
		},
		{
			name:   "phase change resets bucket",
			bucket: 5,
			steps: []step{
				{50, "loading", true},
				{0, "transcribing", true},
				{10, "transcribing", true},
				{10, " transcribing ", false},
			},
		},
		{
			name:   "unknown percent",
			bucket: 5,
			steps: []step{
				{-1, "extracting", true},
				{-1, "extracting", false},
			},
		},
		{
			name:   "caps at one hundred",
			bucket: 5,
			steps: []step{
				{95, "exporting", true},
				{100, "exporting", true},
				{105, "exporting", false},
			},
		},
		{
			name:   "quarter buckets",
			bucket: 25,
			steps: []step{
				{0, "x", true},
				{20, "x", false},
				{25, "x", true},
				{49, "x", false},
				{50, "x", true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucket)
			for i, st := range tt.steps {
				if got := s.ShouldLog(st.percent, st.phase); got != st.want {
					t.Fatalf("step %d (%v%% %q): got %v want %v", i, st.percent, st.phase, got, st.want)
				}
			}
		})
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "transcribing")

	s.Reset()

	if s.lastPhase != "" {
		t.Errorf("lastPhase = %q, want empty after reset", s.lastPhase)
	}
	if !s.ShouldLog(50, "transcribing") {
		t.Error("should log after reset")
	}
}
