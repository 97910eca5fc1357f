// Package app holds the per-session view state and the controller that
// drives the gateway on behalf of one browser session.
package app

import "github.io/infrasutra/chainmail/internal/mailbox"

type Tab string

const (
	TabCompose Tab = "compose"
	TabInbox   Tab = "inbox"
	TabSent    Tab = "sent"
)

// ParseTab maps a request value onto a tab; anything unknown is compose.
func ParseTab(s string) Tab {
	switch Tab(s) {
	case TabInbox, TabSent:
		return Tab(s)
	default:
		return TabCompose
	}
}

type Draft struct {
	Recipient string
	Subject   string
	Content   string
}

// Complete reports whether every field is filled in.
func (d Draft) Complete() bool {
	return d.Recipient != "" && d.Subject != "" && d.Content != ""
}

// State is everything a page render needs.
type State struct {
	Account  string
	Tab      Tab
	Draft    Draft
	Received []mailbox.EmailMetadata
	Sent     []mailbox.EmailMetadata
	Status   string
	// Total is the contract-wide email count as of the last reload.
	Total    uint64
	HasTotal bool
}

func NewState() State {
	return State{Tab: TabCompose}
}

func (s State) Connected() bool {
	return s.Account != ""
}

// Action is a state transition request handled by Reduce.
type Action interface {
	isAction()
}

type Connected struct{ Account string }

type TabSelected struct{ Tab Tab }

type DraftEdited struct{ Draft Draft }

type StatusChanged struct{ Status string }

type EmailsLoaded struct {
	Received []mailbox.EmailMetadata
	Sent     []mailbox.EmailMetadata
}

type TotalLoaded struct{ Total uint64 }

// EmailSent clears the draft after a confirmed send.
type EmailSent struct{}

func (Connected) isAction()     {}
func (TabSelected) isAction()   {}
func (DraftEdited) isAction()   {}
func (StatusChanged) isAction() {}
func (EmailsLoaded) isAction()  {}
func (TotalLoaded) isAction()   {}
func (EmailSent) isAction()     {}

// Reduce returns the state after applying a. It never touches the lists
// except to replace them wholesale with freshly loaded copies.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Connected:
		s.Account = a.Account
	case TabSelected:
		s.Tab = ParseTab(string(a.Tab))
	case DraftEdited:
		s.Draft = a.Draft
	case StatusChanged:
		s.Status = a.Status
	case EmailsLoaded:
		s.Received = a.Received
		s.Sent = a.Sent
	case TotalLoaded:
		s.Total, s.HasTotal = a.Total, true
	case EmailSent:
		s.Draft = Draft{}
	}
	return s
}
