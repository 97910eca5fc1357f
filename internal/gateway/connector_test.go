package gateway

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/chainmail/internal/contract"
	"github.io/infrasutra/chainmail/internal/wallet"
)

const anvilKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWalletConnector_NoProvider(t *testing.T) {
	c := NewWalletConnector(wallet.NewManager(nil, discard()), nil, "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	_, err := c.Connect(context.Background(), "")
	require.ErrorIs(t, err, wallet.ErrNoProvider)
}

func TestWalletConnector_BindsSessionAccount(t *testing.T) {
	provider, err := wallet.NewKeyProvider(anvilKey, wallet.FixedChainID(31337))
	require.NoError(t, err)
	c := NewWalletConnector(wallet.NewManager(provider, discard()), nil,
		"0x5FbDB2315678afecb367f032d93F642f64180aa3", WithDemoMode(false))

	g, err := c.Connect(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, alice, g.Account())
	assert.False(t, g.DemoMode())
}

func TestWalletConnector_InvalidContractAddress(t *testing.T) {
	provider, err := wallet.NewKeyProvider(anvilKey, wallet.FixedChainID(31337))
	require.NoError(t, err)
	c := NewWalletConnector(wallet.NewManager(provider, discard()), nil, "not-an-address")

	_, err = c.Connect(context.Background(), "")
	require.ErrorIs(t, err, contract.ErrInvalidAddress)
}
