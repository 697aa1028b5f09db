package suggestion

import (
	"fmt"

	"AIAssist/internal/session"
)

// transitions lists the phases reachable from each phase
var transitions = map[session.Phase][]session.Phase{
	session.PhaseIdle:           {session.PhaseRequesting},
	session.PhaseRequesting:     {session.PhaseStreaming, session.PhaseSettledError, session.PhaseIdle},
	session.PhaseStreaming:      {session.PhaseSettledSuccess, session.PhaseSettledError, session.PhaseIdle},
	session.PhaseSettledSuccess: {session.PhaseRequesting},
	session.PhaseSettledError:   {session.PhaseRequesting},
}

// canTransition reports whether from -> to is a legal move
func canTransition(from, to session.Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transitionError describes an illegal phase change
type transitionError struct {
	from, to session.Phase
}

func (e transitionError) Error() string {
	return fmt.Sprintf("illegal phase transition %s -> %s", e.from, e.to)
}
