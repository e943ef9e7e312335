package wizard

// Step represents a collection step of the request-creation wizard
type Step string

const (
	StepSelectProject  Step = "SELECT_PROJECT"
	StepSelectCurrency Step = "SELECT_CURRENCY"
	StepEnterAmount    Step = "ENTER_AMOUNT"
	StepSelectSource   Step = "SELECT_SOURCE"
	StepAttachDocument Step = "ATTACH_DOCUMENT"
	StepEnterNote      Step = "ENTER_NOTE"
	StepSelectPeriod   Step = "SELECT_PERIOD"
	StepConfirm        Step = "CONFIRM"
	StepDone           Step = "DONE"
	StepCancelled      Step = "CANCELLED"
)

// order is the fixed forward sequence of collection steps
var order = []Step{
	StepSelectProject,
	StepSelectCurrency,
	StepEnterAmount,
	StepSelectSource,
	StepAttachDocument,
	StepEnterNote,
	StepSelectPeriod,
	StepConfirm,
	StepDone,
}

var optionalSteps = map[Step]bool{
	StepAttachDocument: true,
	StepEnterNote:      true,
}

// Next returns the step following s in the fixed order; terminal steps
// return themselves.
func (s Step) Next() Step {
	for i, step := range order {
		if step == s && i < len(order)-1 {
			return order[i+1]
		}
	}
	return s
}

// Prev returns the step preceding s in the fixed order; the first step
// and terminal steps return themselves.
func (s Step) Prev() Step {
	for i, step := range order {
		if step == s && i > 0 {
			return order[i-1]
		}
	}
	return s
}

// IsOptional returns true if the step accepts an explicit skip input
func (s Step) IsOptional() bool {
	return optionalSteps[s]
}

// IsTerminal returns true if the wizard session is finished at this step
func (s Step) IsTerminal() bool {
	return s == StepDone || s == StepCancelled
}

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}
