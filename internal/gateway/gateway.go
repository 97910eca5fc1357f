// Package gateway wraps the PrivacyEmail contract methods in typed calls for
// one connected account.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.io/infrasutra/chainmail/internal/contract"
	"github.io/infrasutra/chainmail/internal/mailbox"
	"github.io/infrasutra/chainmail/internal/store"
)

var (
	ErrMissingFields = errors.New("recipient, subject and content are required")
	// ErrConfidentialDisabled is returned by every send outside demo mode.
	// The message is shown to users verbatim.
	ErrConfidentialDisabled = errors.New("Production FHE path disabled")
)

// Journal records state-changing calls; store.Store implements it.
type Journal interface {
	RecordTransaction(ctx context.Context, tx store.Transaction) error
}

// Notifier is told which accounts' lists changed; sse.Hub implements it.
type Notifier interface {
	NotifyReload(accounts []string, method string, emailID uint64)
}

type Gateway struct {
	contract contract.Contract
	account  string
	demo     bool
	journal  Journal
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Gateway)

// WithDemoMode selects the plaintext send path (true, the default) or the
// confidential one.
func WithDemoMode(demo bool) Option {
	return func(g *Gateway) {
		g.demo = demo
	}
}

func WithJournal(j Journal) Option {
	return func(g *Gateway) {
		g.journal = j
	}
}

func WithNotifier(n Notifier) Option {
	return func(g *Gateway) {
		g.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func New(c contract.Contract, account string, opts ...Option) *Gateway {
	g := &Gateway{
		contract: c,
		account:  strings.ToLower(account),
		demo:     true,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Account() string {
	return g.account
}

func (g *Gateway) DemoMode() bool {
	return g.demo
}

// SendPlainEmail submits a plaintext email and waits for it to be mined.
// The returned id is the one the contract reported for the call just
// before submission.
func (g *Gateway) SendPlainEmail(ctx context.Context, recipient, subject, content string) (uint64, error) {
	if recipient == "" || subject == "" || content == "" {
		return 0, ErrMissingFields
	}
	if !g.demo {
		return 0, ErrConfidentialDisabled
	}

	out, err := g.contract.Call(ctx, contract.MethodSendPlainEmail, recipient, subject, content)
	if err != nil {
		return 0, err
	}
	id, err := contract.DecodeUint(out)
	if err != nil {
		return 0, err
	}
	if err := g.transact(ctx, contract.MethodSendPlainEmail, &id, recipient, subject, content); err != nil {
		return 0, err
	}
	g.notify(contract.MethodSendPlainEmail, id, g.account, recipient)
	return id, nil
}

func (g *Gateway) MarkAsRead(ctx context.Context, emailID uint64) error {
	if err := g.transact(ctx, contract.MethodMarkAsRead, &emailID, emailID); err != nil {
		return err
	}
	g.notifyParties(ctx, contract.MethodMarkAsRead, emailID)
	return nil
}

func (g *Gateway) DeleteEmail(ctx context.Context, emailID uint64) error {
	if err := g.transact(ctx, contract.MethodDeleteEmail, &emailID, emailID); err != nil {
		return err
	}
	g.notifyParties(ctx, contract.MethodDeleteEmail, emailID)
	return nil
}

// GetUserEmails lists the emails received by account, in contract order.
func (g *Gateway) GetUserEmails(ctx context.Context, account string) ([]mailbox.EmailMetadata, error) {
	out, err := g.contract.Call(ctx, contract.MethodGetUserEmails, account)
	if err != nil {
		return nil, err
	}
	return contract.DecodeEmails(out)
}

// GetSentEmails lists the emails sent by account, in contract order.
func (g *Gateway) GetSentEmails(ctx context.Context, account string) ([]mailbox.EmailMetadata, error) {
	out, err := g.contract.Call(ctx, contract.MethodGetSentEmails, account)
	if err != nil {
		return nil, err
	}
	return contract.DecodeEmails(out)
}

func (g *Gateway) GetEmailDetails(ctx context.Context, emailID uint64) (mailbox.EmailMetadata, error) {
	out, err := g.contract.Call(ctx, contract.MethodGetEmailDetails, emailID)
	if err != nil {
		return mailbox.EmailMetadata{}, err
	}
	return contract.DecodeEmail(out)
}

func (g *Gateway) GetTotalEmails(ctx context.Context) (uint64, error) {
	out, err := g.contract.Call(ctx, contract.MethodGetTotalEmails)
	if err != nil {
		return 0, err
	}
	return contract.DecodeUint(out)
}

// Reload fetches both lists of the gateway's account in parallel.
func (g *Gateway) Reload(ctx context.Context) (received, sent []mailbox.EmailMetadata, err error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		received, err = g.GetUserEmails(groupCtx, g.account)
		return err
	})
	group.Go(func() error {
		var err error
		sent, err = g.GetSentEmails(groupCtx, g.account)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return received, sent, nil
}

func (g *Gateway) transact(ctx context.Context, method string, emailID *uint64, args ...any) error {
	entry := store.Transaction{
		ID:        uuid.NewString(),
		Account:   g.account,
		Method:    method,
		EmailID:   emailID,
		Status:    store.TxPending,
		CreatedAt: g.now(),
	}
	g.record(ctx, entry)

	tx, err := g.contract.Transact(ctx, method, args...)
	if err != nil {
		g.fail(ctx, entry, err)
		return err
	}
	entry.TxHash = tx.Hash()
	entry.Status = store.TxSubmitted
	g.record(ctx, entry)
	g.logger.InfoContext(ctx, "transaction submitted", "method", method, "tx", entry.TxHash)

	if err := tx.Wait(ctx); err != nil {
		g.fail(ctx, entry, err)
		return err
	}
	entry.Status = store.TxConfirmed
	g.record(ctx, entry)
	g.logger.InfoContext(ctx, "transaction confirmed", "method", method, "tx", entry.TxHash)
	return nil
}

func (g *Gateway) fail(ctx context.Context, entry store.Transaction, err error) {
	entry.Status = store.TxFailed
	entry.Error = contract.Reason(err)
	g.record(ctx, entry)
	g.logger.ErrorContext(ctx, "transaction failed", "method", entry.Method, "tx", entry.TxHash, "error", err)
}

func (g *Gateway) record(ctx context.Context, entry store.Transaction) {
	if g.journal == nil {
		return
	}
	entry.UpdatedAt = g.now()
	if err := g.journal.RecordTransaction(ctx, entry); err != nil {
		g.logger.WarnContext(ctx, "journal transaction", "method", entry.Method, "error", err)
	}
}

// notifyParties looks up both ends of an email so that the counterpart's
// pages reload too. A failed lookup still notifies the caller.
func (g *Gateway) notifyParties(ctx context.Context, method string, emailID uint64) {
	if g.notifier == nil {
		return
	}
	accounts := []string{g.account}
	if email, err := g.GetEmailDetails(ctx, emailID); err == nil {
		accounts = append(accounts, email.Sender, email.Recipient)
	}
	g.notify(method, emailID, accounts...)
}

func (g *Gateway) notify(method string, emailID uint64, accounts ...string) {
	if g.notifier == nil {
		return
	}
	normalized := make([]string, 0, len(accounts))
	for _, a := range accounts {
		normalized = append(normalized, strings.ToLower(a))
	}
	g.notifier.NotifyReload(normalized, method, emailID)
}
