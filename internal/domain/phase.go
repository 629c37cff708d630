package domain

// Phase is the lifecycle state of a single evaluation run.
type Phase int

// Run phases in the order a successful run visits them.
const (
	PhaseInitialized Phase = iota
	PhaseSampled
	PhaseIntentModelBuilt
	PhaseEntityModelsBuilt
	PhaseTesting
	PhaseReported

	// PhaseAborted is terminal. It is only entered when the intent model
	// cannot be built; entity model failures never abort a run.
	PhaseAborted
)

var phaseNames = [...]string{
	PhaseInitialized:       "initialized",
	PhaseSampled:           "sampled",
	PhaseIntentModelBuilt:  "intent_model_built",
	PhaseEntityModelsBuilt: "entity_models_built",
	PhaseTesting:           "testing",
	PhaseReported:          "reported",
	PhaseAborted:           "aborted",
}

// String returns the snake_case name of the phase.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// IsTerminal reports whether no further transition is possible.
func (p Phase) IsTerminal() bool { return p == PhaseReported || p == PhaseAborted }

// CanTransitionTo reports whether moving from p to next is a legal step.
func (p Phase) CanTransitionTo(next Phase) bool {
	switch p {
	case PhaseInitialized:
		return next == PhaseSampled
	case PhaseSampled:
		return next == PhaseIntentModelBuilt || next == PhaseAborted
	case PhaseIntentModelBuilt:
		return next == PhaseEntityModelsBuilt || next == PhaseAborted
	case PhaseEntityModelsBuilt:
		return next == PhaseTesting
	case PhaseTesting:
		return next == PhaseReported
	default:
		return false
	}
}
