package lifecycle

import "fmt"

// transitions is the closed edge table of the approval lifecycle.
// Any (status, trigger) pair not listed here is rejected.
var transitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerMarkWaiting: StatusWaiting,
		TriggerReject:      StatusRejected,
	},
	StatusWaiting: {
		TriggerMarkPaid: StatusPaid,
		TriggerReject:   StatusRejected,
	},
}

// Next returns the status reached by firing trigger from the current status.
// Terminal statuses absorb every trigger with ErrTerminalState; edges missing
// from the table fail with ErrInvalidTransition.
func Next(from Status, trigger Trigger) (Status, error) {
	if !from.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, from)
	}

	if from.IsTerminal() {
		return "", fmt.Errorf("%w: cannot fire %s from %s", ErrTerminalState, trigger, from)
	}

	to, ok := transitions[from][trigger]
	if !ok {
		return "", fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, from)
	}

	return to, nil
}

// CanFire returns true if the trigger is permitted from the given status
func CanFire(from Status, trigger Trigger) bool {
	_, ok := transitions[from][trigger]
	return ok
}

// PermittedTriggers returns all triggers that can be fired from the given status
func PermittedTriggers(from Status) []Trigger {
	edges := transitions[from]
	triggers := make([]Trigger, 0, len(edges))
	for t := range edges {
		triggers = append(triggers, t)
	}
	return triggers
}
