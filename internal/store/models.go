package store

import "time"

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Transaction is one journal row: a state-changing contract call and how it
// ended. EmailID is nil when the call failed before an id was known.
type Transaction struct {
	ID        string
	Account   string
	Method    string
	EmailID   *uint64
	TxHash    string
	Status    TxStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
