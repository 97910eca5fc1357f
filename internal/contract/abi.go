// Package contract binds the PrivacyEmail contract through go-ethereum and
// decodes its return tuples into mailbox records.
package contract

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodSendPlainEmail  = "sendPlainEmail"
	MethodMarkAsRead      = "markAsRead"
	MethodDeleteEmail     = "deleteEmail"
	MethodGetUserEmails   = "getUserEmails"
	MethodGetSentEmails   = "getSentEmails"
	MethodGetEmailDetails = "getEmailDetails"
	MethodGetTotalEmails  = "getTotalEmails"
)

//go:embed privacyemail.abi.json
var abiJSON string

var (
	parsedOnce sync.Once
	parsedABI  abi.ABI
	parsedErr  error
)

// ABI returns the parsed contract interface.
func ABI() (abi.ABI, error) {
	parsedOnce.Do(func() {
		parsedABI, parsedErr = abi.JSON(strings.NewReader(abiJSON))
		if parsedErr != nil {
			parsedErr = fmt.Errorf("parse contract abi: %w", parsedErr)
		}
	})
	return parsedABI, parsedErr
}
