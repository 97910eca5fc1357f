package contract

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrReverted         = errors.New("transaction reverted")
	ErrUnexpectedOutput = errors.New("unexpected contract output")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrUnknownMethod    = errors.New("unknown contract method")
)

const unknownError = "unknown error"

// Reason reduces a failed call to a human string. A revert reason supplied
// by the contract wins over the error text.
func Reason(err error) string {
	if err == nil {
		return unknownError
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := revertReason(dataErr.ErrorData()); ok {
			return reason
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownError
}

func revertReason(data any) (string, bool) {
	var raw []byte
	switch v := data.(type) {
	case string:
		decoded, err := hexutil.Decode(v)
		if err != nil {
			return "", false
		}
		raw = decoded
	case []byte:
		raw = v
	default:
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil || reason == "" {
		return "", false
	}
	return reason, true
}
