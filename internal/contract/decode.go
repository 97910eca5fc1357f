package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.io/infrasutra/chainmail/internal/mailbox"
)

// EmailTuple is the Go shape of PrivacyEmail.EmailMetadata.
type EmailTuple struct {
	EmailID   *big.Int       `abi:"emailId"`
	Subject   string         `abi:"subject"`
	Timestamp *big.Int       `abi:"timestamp"`
	State     uint8          `abi:"state"`
	Sender    common.Address `abi:"sender"`
	Recipient common.Address `abi:"recipient"`
}

func (t EmailTuple) Metadata() (mailbox.EmailMetadata, error) {
	id, err := toUint64(t.EmailID)
	if err != nil {
		return mailbox.EmailMetadata{}, fmt.Errorf("email id: %w", err)
	}
	ts, err := toUint64(t.Timestamp)
	if err != nil {
		return mailbox.EmailMetadata{}, fmt.Errorf("email timestamp: %w", err)
	}
	return mailbox.EmailMetadata{
		ID:        id,
		Subject:   t.Subject,
		Timestamp: int64(ts),
		State:     mailbox.State(t.State),
		Sender:    t.Sender.Hex(),
		Recipient: t.Recipient.Hex(),
	}, nil
}

// DecodeEmails converts the output of getUserEmails/getSentEmails.
func DecodeEmails(out []any) ([]mailbox.EmailMetadata, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d values", ErrUnexpectedOutput, len(out))
	}
	tuples, err := convert[[]EmailTuple](out[0])
	if err != nil {
		return nil, err
	}
	emails := make([]mailbox.EmailMetadata, 0, len(tuples))
	for _, tuple := range tuples {
		email, err := tuple.Metadata()
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// DecodeEmail converts the output of getEmailDetails.
func DecodeEmail(out []any) (mailbox.EmailMetadata, error) {
	if len(out) != 1 {
		return mailbox.EmailMetadata{}, fmt.Errorf("%w: %d values", ErrUnexpectedOutput, len(out))
	}
	tuple, err := convert[EmailTuple](out[0])
	if err != nil {
		return mailbox.EmailMetadata{}, err
	}
	return tuple.Metadata()
}

// DecodeUint converts a single uint256 output such as a new email id.
func DecodeUint(out []any) (uint64, error) {
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: %d values", ErrUnexpectedOutput, len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: %T", ErrUnexpectedOutput, out[0])
	}
	return toUint64(value)
}

// convert maps the anonymous structs produced by the abi decoder onto T.
func convert[T any](v any) (result T, err error) {
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnexpectedOutput, r)
		}
	}()
	converted, ok := abi.ConvertType(v, new(T)).(*T)
	if !ok {
		return result, fmt.Errorf("%w: %T", ErrUnexpectedOutput, v)
	}
	return *converted, nil
}

func toUint64(v *big.Int) (uint64, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: nil integer", ErrUnexpectedOutput)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s out of range", ErrUnexpectedOutput, v)
	}
	return v.Uint64(), nil
}

// NormalizeAccount renders an address the way sessions store it: lowercase hex.
func NormalizeAccount(address common.Address) string {
	return strings.ToLower(address.Hex())
}
