package pipeline

import "testing"

func TestPhaseNext(t *testing.T) {
	want := []Phase{
		PhaseBaseProvisioned,
		PhaseSourceMaterialized,
		PhaseDependenciesInstalled,
		PhaseEntryPointActive,
	}

	phase := PhaseStart
	for _, next := range want {
		got, ok := phase.Next()
		if !ok {
			t.Fatalf("%s.Next() = none, want %s", phase, next)
		}
		if got != next {
			t.Fatalf("%s.Next() = %s, want %s", phase, got, next)
		}
		phase = got
	}

	if _, ok := phase.Next(); ok {
		t.Fatalf("%s.Next() should be terminal", phase)
	}
}

func TestPhaseTerminal(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhaseStart, false},
		{PhaseBaseProvisioned, false},
		{PhaseDependenciesInstalled, false},
		{PhaseEntryPointActive, true},
		{PhaseFailed, true},
	}

	for _, tt := range tests {
		if got := tt.phase.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestFailedHasNoNext(t *testing.T) {
	if _, ok := PhaseFailed.Next(); ok {
		t.Fatal("PhaseFailed.Next() should be none")
	}
}
