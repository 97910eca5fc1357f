package gateway

import (
	"context"
	"fmt"

	"github.io/infrasutra/chainmail/internal/contract"
	"github.io/infrasutra/chainmail/internal/wallet"
)

// WalletConnector opens gateways for accounts granted by a wallet session,
// bound to the deployed contract through backend.
type WalletConnector struct {
	wallet  *wallet.Manager
	backend contract.Backend
	address string
	opts    []Option
}

func NewWalletConnector(w *wallet.Manager, backend contract.Backend, address string, opts ...Option) *WalletConnector {
	return &WalletConnector{wallet: w, backend: backend, address: address, opts: opts}
}

// Connect returns wallet.ErrNoProvider untouched when no wallet is detected.
func (c *WalletConnector) Connect(ctx context.Context, preferred string) (*Gateway, error) {
	session, err := c.wallet.Connect(ctx, preferred)
	if err != nil {
		return nil, err
	}
	binding, err := contract.Bind(c.address, c.backend, session.Signer)
	if err != nil {
		return nil, fmt.Errorf("bind contract: %w", err)
	}
	return New(binding, session.Account, c.opts...), nil
}
