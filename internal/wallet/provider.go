// Package wallet holds the signing side of a session: which account is
// active and how its transactions get signed.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoProvider     = errors.New("no wallet provider")
	ErrNoAccounts     = errors.New("wallet exposes no accounts")
	ErrUnknownAccount = errors.New("account not managed by wallet")
	ErrInvalidKey     = errors.New("invalid private key")
)

// Provider is the capability set a wallet offers: account access and
// signer derivation, in the spirit of an EIP-1193 provider.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

// ChainIDFunc resolves the chain the signer targets; ethclient.Client.ChainID
// satisfies it.
type ChainIDFunc func(ctx context.Context) (*big.Int, error)

// FixedChainID returns a ChainIDFunc that always reports id.
func FixedChainID(id int64) ChainIDFunc {
	return func(context.Context) (*big.Int, error) {
		return big.NewInt(id), nil
	}
}

// cachedChainID asks once and remembers a successful answer.
func cachedChainID(fn ChainIDFunc) ChainIDFunc {
	var (
		mu     sync.Mutex
		cached *big.Int
	)
	return func(ctx context.Context) (*big.Int, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != nil {
			return new(big.Int).Set(cached), nil
		}
		id, err := fn(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve chain id: %w", err)
		}
		cached = new(big.Int).Set(id)
		return id, nil
	}
}

// KeyProvider signs with a single raw private key.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID ChainIDFunc
}

func NewKeyProvider(hexKey string, chainID ChainIDFunc) (*KeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &KeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: cachedChainID(chainID),
	}, nil
}

func (p *KeyProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *KeyProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	if account != p.address {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	chainID, err := p.chainID(ctx)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(p.key, chainID)
}

// KeystoreProvider signs with the accounts of an encrypted keystore
// directory, unlocked with one passphrase.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	passphrase string
	chainID    ChainIDFunc
}

func NewKeystoreProvider(dir, passphrase string, chainID ChainIDFunc) *KeystoreProvider {
	return &KeystoreProvider{
		ks:         keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		passphrase: passphrase,
		chainID:    cachedChainID(chainID),
	}
}

func (p *KeystoreProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	accts := p.ks.Accounts()
	addrs := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		addrs = append(addrs, a.Address)
	}
	return addrs, nil
}

func (p *KeystoreProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	acct := accounts.Account{Address: account}
	if !p.ks.HasAddress(account) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	if err := p.ks.Unlock(acct, p.passphrase); err != nil {
		return nil, fmt.Errorf("unlock %s: %w", account.Hex(), err)
	}
	chainID, err := p.chainID(ctx)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyStoreTransactorWithChainID(p.ks, acct, chainID)
}

// Detect picks the configured provider. It returns nil when no signing
// source is configured, which callers treat as "no wallet present".
func Detect(privateKey, keystoreDir, passphrase string, chainID ChainIDFunc) (Provider, error) {
	switch {
	case strings.TrimSpace(privateKey) != "":
		p, err := NewKeyProvider(privateKey, chainID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case strings.TrimSpace(keystoreDir) != "":
		return NewKeystoreProvider(keystoreDir, passphrase, chainID), nil
	default:
		return nil, nil
	}
}
