package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract is the narrow surface the gateway drives. Call is read-only;
// Transact submits a transaction and returns without waiting for it.
type Contract interface {
	Call(ctx context.Context, method string, args ...any) ([]any, error)
	Transact(ctx context.Context, method string, args ...any) (Tx, error)
}

// Tx is a submitted transaction.
type Tx interface {
	Hash() string
	// Wait blocks until the transaction is mined. A reverted receipt is
	// reported as ErrReverted.
	Wait(ctx context.Context) error
}

// Backend is what an ethclient.Client provides.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Binding struct {
	abi      abi.ABI
	contract *bind.BoundContract
	backend  bind.DeployBackend
	opts     *bind.TransactOpts
}

// Bind attaches to the deployed contract. opts carries the signer; it may
// be nil for a read-only binding.
func Bind(address string, backend Backend, opts *bind.TransactOpts) (*Binding, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("contract address: %w: %q", ErrInvalidAddress, address)
	}
	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(address)
	return &Binding{
		abi:      parsed,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
		backend:  backend,
		opts:     opts,
	}, nil
}

func (b *Binding) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	params, err := b.convertArgs(method, args)
	if err != nil {
		return nil, err
	}
	callOpts := &bind.CallOpts{Context: ctx}
	if b.opts != nil {
		callOpts.From = b.opts.From
	}
	var out []any
	if err := b.contract.Call(callOpts, &out, method, params...); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Binding) Transact(ctx context.Context, method string, args ...any) (Tx, error) {
	if b.opts == nil {
		return nil, errors.New("no signer attached")
	}
	params, err := b.convertArgs(method, args)
	if err != nil {
		return nil, err
	}
	opts := *b.opts
	opts.Context = ctx
	tx, err := b.contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, err
	}
	return &pendingTx{tx: tx, backend: b.backend}, nil
}

// convertArgs maps plain Go values onto the ABI input types: hex strings
// become addresses and unsigned integers become *big.Int.
func (b *Binding) convertArgs(method string, args []any) ([]any, error) {
	m, ok := b.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return convertArgs(m, args)
}

func convertArgs(m abi.Method, args []any) ([]any, error) {
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", m.Name, len(m.Inputs), len(args))
	}
	params := make([]any, len(args))
	for i, input := range m.Inputs {
		arg := args[i]
		switch input.Type.T {
		case abi.AddressTy:
			if s, ok := arg.(string); ok {
				if !common.IsHexAddress(s) {
					return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
				}
				arg = common.HexToAddress(s)
			}
		case abi.UintTy:
			if input.Type.Size > 64 {
				switch v := arg.(type) {
				case uint64:
					arg = new(big.Int).SetUint64(v)
				case int:
					arg = big.NewInt(int64(v))
				}
			}
		}
		params[i] = arg
	}
	return params, nil
}

type pendingTx struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (p *pendingTx) Hash() string {
	return p.tx.Hash().Hex()
}

func (p *pendingTx) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", p.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrReverted, p.Hash())
	}
	return nil
}
