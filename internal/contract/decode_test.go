package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/chainmail/internal/mailbox"
)

var (
	alice = common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	bob   = common.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
)

func tuple(id int64, subject string, state uint8) EmailTuple {
	return EmailTuple{
		EmailID:   big.NewInt(id),
		Subject:   subject,
		Timestamp: big.NewInt(1700000000 + id),
		State:     state,
		Sender:    alice,
		Recipient: bob,
	}
}

func TestDecodeEmails_TypedSlice(t *testing.T) {
	out := []any{[]EmailTuple{tuple(1, "hello", 0), tuple(2, "again", 2)}}

	emails, err := DecodeEmails(out)
	require.NoError(t, err)
	require.Len(t, emails, 2)

	assert.Equal(t, mailbox.EmailMetadata{
		ID:        1,
		Subject:   "hello",
		Timestamp: 1700000001,
		State:     mailbox.StateSent,
		Sender:    alice.Hex(),
		Recipient: bob.Hex(),
	}, emails[0])
	assert.Equal(t, mailbox.StateDeleted, emails[1].State)
}

func TestDecodeEmails_AnonymousStructs(t *testing.T) {
	type decoded struct {
		EmailId   *big.Int       `json:"emailId"`
		Subject   string         `json:"subject"`
		Timestamp *big.Int       `json:"timestamp"`
		State     uint8          `json:"state"`
		Sender    common.Address `json:"sender"`
		Recipient common.Address `json:"recipient"`
	}
	out := []any{[]decoded{{
		EmailId:   big.NewInt(9),
		Subject:   "from abi",
		Timestamp: big.NewInt(5),
		State:     1,
		Sender:    bob,
		Recipient: alice,
	}}}

	emails, err := DecodeEmails(out)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, uint64(9), emails[0].ID)
	assert.Equal(t, mailbox.StateRead, emails[0].State)
	assert.Equal(t, alice.Hex(), emails[0].Recipient)
}

func TestDecodeEmails_Empty(t *testing.T) {
	emails, err := DecodeEmails([]any{[]EmailTuple{}})
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestDecodeEmails_BadShape(t *testing.T) {
	_, err := DecodeEmails(nil)
	require.ErrorIs(t, err, ErrUnexpectedOutput)

	_, err = DecodeEmails([]any{"nope"})
	require.ErrorIs(t, err, ErrUnexpectedOutput)
}

func TestDecodeEmail(t *testing.T) {
	email, err := DecodeEmail([]any{tuple(4, "one", 1)})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), email.ID)
	assert.Equal(t, "one", email.Subject)
	assert.Equal(t, mailbox.StateRead, email.State)
}

func TestDecodeUint(t *testing.T) {
	id, err := DecodeUint([]any{big.NewInt(42)})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	huge := new(big.Int).Lsh(big.NewInt(1), 80)
	_, err = DecodeUint([]any{huge})
	require.ErrorIs(t, err, ErrUnexpectedOutput)

	_, err = DecodeUint([]any{uint64(1)})
	require.ErrorIs(t, err, ErrUnexpectedOutput)
}

func TestNormalizeAccount(t *testing.T) {
	assert.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", NormalizeAccount(alice))
	assert.Len(t, NormalizeAccount(alice), 42)
}
