// Package contracttest provides a scripted in-memory stand-in for the
// PrivacyEmail contract.
package contracttest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.io/infrasutra/chainmail/internal/contract"
)

// Call is one recorded invocation.
type Call struct {
	Account  string
	Method   string
	Args     []any
	Transact bool
}

type email struct {
	id        uint64
	subject   string
	content   string
	timestamp int64
	state     uint8
	sender    common.Address
	recipient common.Address
}

// Ledger is the shared state behind every Fake handed out by As.
type Ledger struct {
	mu       sync.Mutex
	emails   []*email
	calls    []Call
	failures map[string]error
	waitErr  map[string]error
	txCount  int
	Now      func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		failures: map[string]error{},
		waitErr:  map[string]error{},
		Now:      time.Now,
	}
}

// As returns a contract handle whose calls originate from account.
func (l *Ledger) As(account string) *Fake {
	return &Fake{ledger: l, account: common.HexToAddress(account)}
}

// Fail makes every call of method return err until cleared with a nil err.
func (l *Ledger) Fail(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.failures, method)
		return
	}
	l.failures[method] = err
}

// FailWait makes transactions of method submit but revert on Wait.
func (l *Ledger) FailWait(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.waitErr, method)
		return
	}
	l.waitErr[method] = err
}

func (l *Ledger) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call(nil), l.calls...)
}

// Count returns how many times method was invoked, by call or transaction.
func (l *Ledger) Count(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Seed stores an email directly, bypassing the call log.
func (l *Ledger) Seed(sender, recipient, subject string, state uint8) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.insert(common.HexToAddress(sender), common.HexToAddress(recipient), subject, "")
	e.state = state
	return e.id
}

// Content returns the stored body of an email.
func (l *Ledger) Content(id uint64) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e := l.find(id); e != nil {
		return e.content, true
	}
	return "", false
}

func (l *Ledger) insert(sender, recipient common.Address, subject, content string) *email {
	e := &email{
		id:        uint64(len(l.emails) + 1),
		subject:   subject,
		content:   content,
		timestamp: l.Now().Unix(),
		sender:    sender,
		recipient: recipient,
	}
	l.emails = append(l.emails, e)
	return e
}

func (l *Ledger) find(id uint64) *email {
	for _, e := range l.emails {
		if e.id == id {
			return e
		}
	}
	return nil
}

// Fake implements contract.Contract for one account.
type Fake struct {
	ledger  *Ledger
	account common.Address
}

var _ contract.Contract = (*Fake)(nil)

func (f *Fake) Call(_ context.Context, method string, args ...any) ([]any, error) {
	l := f.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Account: f.accountString(), Method: method, Args: args})
	if err := l.failures[method]; err != nil {
		return nil, err
	}

	switch method {
	case contract.MethodSendPlainEmail:
		if _, err := addressArg(args, 0); err != nil {
			return nil, err
		}
		return []any{new(big.Int).SetUint64(uint64(len(l.emails) + 1))}, nil
	case contract.MethodGetUserEmails, contract.MethodGetSentEmails:
		user, err := addressArg(args, 0)
		if err != nil {
			return nil, err
		}
		tuples := []contract.EmailTuple{}
		for _, e := range l.emails {
			match := e.recipient == user
			if method == contract.MethodGetSentEmails {
				match = e.sender == user
			}
			if match {
				tuples = append(tuples, e.tuple())
			}
		}
		return []any{tuples}, nil
	case contract.MethodGetEmailDetails:
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		e := l.find(id)
		if e == nil {
			return nil, errors.New("execution reverted: Email does not exist")
		}
		return []any{e.tuple()}, nil
	case contract.MethodGetTotalEmails:
		return []any{new(big.Int).SetUint64(uint64(len(l.emails)))}, nil
	}
	return nil, fmt.Errorf("%w: %s", contract.ErrUnknownMethod, method)
}

func (f *Fake) Transact(_ context.Context, method string, args ...any) (contract.Tx, error) {
	l := f.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, Call{Account: f.accountString(), Method: method, Args: args, Transact: true})
	if err := l.failures[method]; err != nil {
		return nil, err
	}
	// A reverted transaction is mined but leaves the ledger untouched.
	if err := l.waitErr[method]; err != nil {
		return l.mined(err), nil
	}

	switch method {
	case contract.MethodSendPlainEmail:
		recipient, err := addressArg(args, 0)
		if err != nil {
			return nil, err
		}
		if len(args) != 3 {
			return nil, errors.New("sendPlainEmail: expected 3 arguments")
		}
		subject, _ := args[1].(string)
		content, _ := args[2].(string)
		l.insert(f.account, recipient, subject, content)
	case contract.MethodMarkAsRead:
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		e := l.find(id)
		switch {
		case e == nil:
			return nil, errors.New("execution reverted: Email does not exist")
		case e.recipient != f.account:
			return nil, errors.New("execution reverted: Not the recipient")
		case e.state != 0:
			return nil, errors.New("execution reverted: Email already read or deleted")
		}
		e.state = 1
	case contract.MethodDeleteEmail:
		id, err := idArg(args)
		if err != nil {
			return nil, err
		}
		e := l.find(id)
		switch {
		case e == nil:
			return nil, errors.New("execution reverted: Email does not exist")
		case e.recipient != f.account && e.sender != f.account:
			return nil, errors.New("execution reverted: Not authorized")
		case e.state == 2:
			return nil, errors.New("execution reverted: Email already deleted")
		}
		e.state = 2
	default:
		return nil, fmt.Errorf("%w: %s", contract.ErrUnknownMethod, method)
	}

	return l.mined(nil), nil
}

func (l *Ledger) mined(err error) *fakeTx {
	l.txCount++
	return &fakeTx{hash: common.BigToHash(big.NewInt(int64(l.txCount))).Hex(), err: err}
}

func (f *Fake) accountString() string {
	return contract.NormalizeAccount(f.account)
}

func (e *email) tuple() contract.EmailTuple {
	return contract.EmailTuple{
		EmailID:   new(big.Int).SetUint64(e.id),
		Subject:   e.subject,
		Timestamp: big.NewInt(e.timestamp),
		State:     e.state,
		Sender:    e.sender,
		Recipient: e.recipient,
	}
}

func addressArg(args []any, i int) (common.Address, error) {
	if len(args) <= i {
		return common.Address{}, errors.New("missing address argument")
	}
	switch v := args[i].(type) {
	case common.Address:
		return v, nil
	case string:
		if !common.IsHexAddress(v) {
			return common.Address{}, fmt.Errorf("%w: %q", contract.ErrInvalidAddress, v)
		}
		return common.HexToAddress(v), nil
	}
	return common.Address{}, fmt.Errorf("%w: %T", contract.ErrInvalidAddress, args[i])
}

func idArg(args []any) (uint64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one email id")
	}
	switch v := args[0].(type) {
	case uint64:
		return v, nil
	case *big.Int:
		return v.Uint64(), nil
	}
	return 0, fmt.Errorf("unsupported email id %T", args[0])
}

type fakeTx struct {
	hash string
	err  error
}

func (t *fakeTx) Hash() string { return t.hash }

func (t *fakeTx) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.err != nil {
		return fmt.Errorf("%w: %v", contract.ErrReverted, t.err)
	}
	return nil
}
