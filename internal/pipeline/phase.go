package pipeline

// A point in the build lifecycle.
//
// The pipeline is a straight line: each phase is entered at most once, in
// order, and any stage error moves the build directly to [PhaseFailed].
// There are no loops and no re-entry.
type Phase string

const (
	PhaseStart                 Phase = "start"
	PhaseBaseProvisioned       Phase = "base-provisioned"
	PhaseSourceMaterialized    Phase = "source-materialized"
	PhaseDependenciesInstalled Phase = "dependencies-installed"
	PhaseEntryPointActive      Phase = "entry-point-active"
	PhaseFailed                Phase = "failed"
)

// Stage phases in execution order.
var phaseOrder = []Phase{
	PhaseBaseProvisioned,
	PhaseSourceMaterialized,
	PhaseDependenciesInstalled,
	PhaseEntryPointActive,
}

// Returns the phase following p, or false when p is terminal or unknown.
func (p Phase) Next() (Phase, bool) {
	if p == PhaseStart {
		return phaseOrder[0], true
	}
	for i, phase := range phaseOrder {
		if phase == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// Returns true when no further phase can follow p.
func (p Phase) Terminal() bool {
	return p == PhaseEntryPointActive || p == PhaseFailed
}

func (p Phase) String() string {
	return string(p)
}
