package services

// PreparationPlan says which background knowledge must exist before a
// session with this visit number can start.
type PreparationPlan struct {
	NeedsMemoryBackfill bool
	NeedsPersonaCheck   bool
}

// PlannerConfig carries the visit-number thresholds. Defaults match the
// product policy: backfill from the 2nd visit, persona from the 4th, and
// persona needs 3 qualifying prior conversations.
type PlannerConfig struct {
	MemoryBackfillFromVisit int
	PersonaFromVisit        int
	PersonaMinQualifying    int
}

// PreparationPlanner is pure policy: no state, no I/O. The orchestrator
// owns the data access the plan implies (which conversations qualify, what
// already has memory).
type PreparationPlanner struct {
	cfg PlannerConfig
}

func NewPreparationPlanner(cfg PlannerConfig) *PreparationPlanner {
	if cfg.MemoryBackfillFromVisit < 1 {
		cfg.MemoryBackfillFromVisit = 2
	}
	if cfg.PersonaFromVisit < cfg.MemoryBackfillFromVisit {
		cfg.PersonaFromVisit = 4
	}
	if cfg.PersonaMinQualifying < 1 {
		cfg.PersonaMinQualifying = 3
	}
	return &PreparationPlanner{cfg: cfg}
}

func (p *PreparationPlanner) PlanFor(visitNumber int) PreparationPlan {
	plan := PreparationPlan{}
	if visitNumber >= p.cfg.MemoryBackfillFromVisit {
		plan.NeedsMemoryBackfill = true
	}
	if visitNumber >= p.cfg.PersonaFromVisit {
		plan.NeedsPersonaCheck = true
	}
	return plan
}

// MinQualifying is the persona precondition: at least this many other
// conversations must contain messages, or creation aborts.
func (p *PreparationPlanner) MinQualifying() int {
	return p.cfg.PersonaMinQualifying
}
