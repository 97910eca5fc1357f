package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.io/infrasutra/chainmail/internal/contract"
)

// Session is an established wallet connection. Account is lowercase hex.
type Session struct {
	Account string
	Signer  *bind.TransactOpts
}

type Manager struct {
	provider Provider
	logger   *slog.Logger
}

// NewManager wraps provider, which may be nil when no wallet was detected.
func NewManager(provider Provider, logger *slog.Logger) *Manager {
	return &Manager{provider: provider, logger: logger}
}

func (m *Manager) Detected() bool {
	return m != nil && m.provider != nil
}

// Connect requests account access and derives a signer. preferred selects
// among several accounts; when empty or unknown, the first account is used.
// Without a provider it returns ErrNoProvider and nothing else happens.
func (m *Manager) Connect(ctx context.Context, preferred string) (*Session, error) {
	if !m.Detected() {
		return nil, ErrNoProvider
	}
	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	account := accounts[0]
	if preferred = strings.TrimSpace(preferred); preferred != "" && common.IsHexAddress(preferred) {
		want := common.HexToAddress(preferred)
		for _, a := range accounts {
			if a == want {
				account = a
				break
			}
		}
	}

	signer, err := m.provider.Signer(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("derive signer: %w", err)
	}
	session := &Session{
		Account: contract.NormalizeAccount(account),
		Signer:  signer,
	}
	m.logger.InfoContext(ctx, "wallet connected", "account", session.Account)
	return session, nil
}
