// Package mailbox holds the read-only copies of contract email records and
// their display helpers.
package mailbox

// State mirrors the contract's email state enum.
type State uint8

const (
	StateSent State = iota
	StateRead
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "Sent"
	case StateRead:
		return "Read"
	case StateDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Color is the badge color used when rendering the state.
func (s State) Color() string {
	switch s {
	case StateSent:
		return "#f59e0b"
	case StateRead:
		return "#10b981"
	case StateDeleted:
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

// EmailMetadata is a copy of one contract record. It is never mutated
// locally; a fresh copy is fetched after every change.
type EmailMetadata struct {
	ID        uint64
	Subject   string
	Timestamp int64
	State     State
	Sender    string
	Recipient string
}

// CanMarkRead reports whether the recipient may still mark the email read.
func (e EmailMetadata) CanMarkRead() bool {
	return e.State == StateSent
}

// CanDelete reports whether a delete request is still meaningful.
func (e EmailMetadata) CanDelete() bool {
	return e.State != StateDeleted
}
