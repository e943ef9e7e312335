package lifecycle

// Trigger represents an event that can cause a status transition
type Trigger string

const (
	TriggerMarkWaiting Trigger = "MARK_WAITING"
	TriggerMarkPaid    Trigger = "MARK_PAID"
	TriggerReject      Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
