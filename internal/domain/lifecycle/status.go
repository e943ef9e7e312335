package lifecycle

// Status represents a request status in the approval lifecycle
type Status string

const (
	StatusPending  Status = "pending"
	StatusWaiting  Status = "waiting"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusWaiting:  true,
	StatusPaid:     true,
	StatusRejected: true,
}

var terminalStatuses = map[Status]bool{
	StatusPaid:     true,
	StatusRejected: true,
}

// IsTerminal returns true if the status permits no further transitions
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
