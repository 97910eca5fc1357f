package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.io/infrasutra/chainmail/internal/contract"
	"github.io/infrasutra/chainmail/internal/gateway"
	"github.io/infrasutra/chainmail/internal/wallet"
)

const (
	StatusFillAllFields = "Please fill all fields"
	StatusSending       = "Sending email..."
	StatusSent          = "Email sent successfully!"
	StatusSendFailed    = "Send failed: "
	StatusMarkingRead   = "Marking as read..."
	StatusMarkedRead    = "Email marked as read"
	StatusMarkReadFail  = "Failed to mark as read"
	StatusDeleting      = "Deleting email..."
	StatusDeleted       = "Email deleted"
	StatusDeleteFail    = "Failed to delete email"
	StatusLoadFailed    = "Failed to load emails"
)

// ErrNotConnected is returned by actions that need a connected account.
var ErrNotConnected = errors.New("wallet not connected")

// Connector opens a gateway for the account the wallet grants.
type Connector interface {
	Connect(ctx context.Context, preferred string) (*gateway.Gateway, error)
}

type ConnectorFunc func(ctx context.Context, preferred string) (*gateway.Gateway, error)

func (f ConnectorFunc) Connect(ctx context.Context, preferred string) (*gateway.Gateway, error) {
	return f(ctx, preferred)
}

// Controller owns the view state of one browser session. Remote calls run
// without the lock held, so a slow action never blocks rendering and a late
// result may overwrite a newer status.
type Controller struct {
	mu      sync.Mutex
	state   State
	gateway *gateway.Gateway
	logger  *slog.Logger
}

func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{state: NewState(), logger: logger}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Gateway returns the connected gateway, or nil before Connect succeeds.
func (c *Controller) Gateway() *gateway.Gateway {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gateway
}

func (c *Controller) dispatch(a Action) {
	c.mu.Lock()
	c.state = Reduce(c.state, a)
	c.mu.Unlock()
}

func (c *Controller) SetTab(tab Tab) {
	c.dispatch(TabSelected{Tab: tab})
}

func (c *Controller) SetDraft(d Draft) {
	c.dispatch(DraftEdited{Draft: d})
}

// Connect asks the wallet for an account and loads both lists. Without a
// wallet provider it does nothing; any failure leaves the state untouched.
func (c *Controller) Connect(ctx context.Context, connector Connector) error {
	c.mu.Lock()
	preferred := c.state.Account
	c.mu.Unlock()

	gw, err := connector.Connect(ctx, preferred)
	if err != nil {
		if errors.Is(err, wallet.ErrNoProvider) {
			c.logger.DebugContext(ctx, "connect skipped, no wallet provider")
		} else {
			c.logger.ErrorContext(ctx, "connect wallet", "error", err)
		}
		return err
	}

	c.mu.Lock()
	c.gateway = gw
	c.state = Reduce(c.state, Connected{Account: gw.Account()})
	c.mu.Unlock()

	c.Reload(ctx)
	return nil
}

// Reload replaces both lists and the email total with the contract's
// current view. A failed total keeps the previous one.
func (c *Controller) Reload(ctx context.Context) {
	gw := c.Gateway()
	if gw == nil {
		return
	}
	received, sent, err := gw.Reload(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "load emails", "error", err)
		c.dispatch(StatusChanged{Status: StatusLoadFailed})
		return
	}
	c.dispatch(EmailsLoaded{Received: received, Sent: sent})

	total, err := gw.GetTotalEmails(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "total emails", "error", err)
		return
	}
	c.dispatch(TotalLoaded{Total: total})
}

// Send submits the current draft and returns the new email's id.
func (c *Controller) Send(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	gw, draft := c.gateway, c.state.Draft
	c.mu.Unlock()

	if gw == nil || !draft.Complete() {
		c.dispatch(StatusChanged{Status: StatusFillAllFields})
		if gw == nil {
			return 0, ErrNotConnected
		}
		return 0, gateway.ErrMissingFields
	}

	c.dispatch(StatusChanged{Status: StatusSending})
	id, err := gw.SendPlainEmail(ctx, draft.Recipient, draft.Subject, draft.Content)
	if err != nil {
		c.logger.ErrorContext(ctx, "send email", "error", err)
		c.dispatch(StatusChanged{Status: StatusSendFailed + contract.Reason(err)})
		return 0, err
	}
	c.logger.InfoContext(ctx, "email sent", "email_id", id)
	c.dispatch(StatusChanged{Status: StatusSent})
	c.dispatch(EmailSent{})
	c.Reload(ctx)
	return id, nil
}

func (c *Controller) MarkRead(ctx context.Context, emailID uint64) error {
	gw := c.Gateway()
	if gw == nil {
		return ErrNotConnected
	}
	c.dispatch(StatusChanged{Status: StatusMarkingRead})
	if err := gw.MarkAsRead(ctx, emailID); err != nil {
		c.logger.ErrorContext(ctx, "mark as read", "email_id", emailID, "error", err)
		c.dispatch(StatusChanged{Status: StatusMarkReadFail})
		return err
	}
	c.dispatch(StatusChanged{Status: StatusMarkedRead})
	c.Reload(ctx)
	return nil
}

func (c *Controller) Delete(ctx context.Context, emailID uint64) error {
	gw := c.Gateway()
	if gw == nil {
		return ErrNotConnected
	}
	c.dispatch(StatusChanged{Status: StatusDeleting})
	if err := gw.DeleteEmail(ctx, emailID); err != nil {
		c.logger.ErrorContext(ctx, "delete email", "email_id", emailID, "error", err)
		c.dispatch(StatusChanged{Status: StatusDeleteFail})
		return err
	}
	c.dispatch(StatusChanged{Status: StatusDeleted})
	c.Reload(ctx)
	return nil
}
