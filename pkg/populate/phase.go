package populate

import (
	"github.com/polesapart/populatefs/internal/errx"
)

type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseImageOpenPending Phase = "image_open_pending"
	PhaseImageOpen        Phase = "image_open"
	PhaseClassify         Phase = "classify"
	PhaseTransform        Phase = "transform"
	PhaseDelegate         Phase = "delegate"
	PhaseResetIdentity    Phase = "reset_identity"
	PhaseImageClose       Phase = "image_close"
	PhaseDone             Phase = "done"
	PhaseAbort            Phase = "abort"
)

var allowedTransitions = map[Phase]map[Phase]bool{
	PhaseInit: {
		PhaseImageOpenPending: true,
		PhaseAbort:            true,
	},
	PhaseImageOpenPending: {
		PhaseImageOpen: true,
		PhaseAbort:     true,
	},
	PhaseImageOpen: {
		PhaseClassify:   true,
		PhaseImageClose: true,
		PhaseAbort:      true,
	},
	PhaseClassify: {
		PhaseTransform: true,
		PhaseAbort:     true,
	},
	PhaseTransform: {
		PhaseDelegate: true,
		PhaseAbort:    true,
	},
	PhaseDelegate: {
		PhaseResetIdentity: true,
		PhaseAbort:         true,
	},
	PhaseResetIdentity: {
		PhaseClassify:   true,
		PhaseImageClose: true,
		PhaseAbort:      true,
	},
	PhaseImageClose: {
		PhaseDone:  true,
		PhaseAbort: true,
	},
	PhaseDone:  {},
	PhaseAbort: {},
}

func validateTransition(from, to Phase) error {
	if from == "" {
		from = PhaseInit
	}
	if to == "" {
		return errx.With(ErrInvalidPhase, " empty target phase from %q", from)
	}
	if !allowedTransitions[from][to] {
		return errx.With(ErrInvalidPhase, " %q -> %q", from, to)
	}
	return nil
}

// Terminal reports whether no further transition is possible from p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAbort
}
