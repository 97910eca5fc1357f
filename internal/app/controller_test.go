package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/chainmail/internal/contract"
	"github.io/infrasutra/chainmail/internal/contract/contracttest"
	"github.io/infrasutra/chainmail/internal/gateway"
	"github.io/infrasutra/chainmail/internal/mailbox"
	"github.io/infrasutra/chainmail/internal/wallet"
)

const (
	alice = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	bob   = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

func connectorFor(ledger *contracttest.Ledger, account string, opts ...gateway.Option) Connector {
	return ConnectorFunc(func(context.Context, string) (*gateway.Gateway, error) {
		return gateway.New(ledger.As(account), account, opts...), nil
	})
}

func connected(t *testing.T, ledger *contracttest.Ledger, account string, opts ...gateway.Option) *Controller {
	t.Helper()
	c := NewController(nil)
	require.NoError(t, c.Connect(context.Background(), connectorFor(ledger, account, opts...)))
	return c
}

func TestConnect_LoadsBothLists(t *testing.T) {
	ledger := contracttest.NewLedger()
	ledger.Seed(bob, alice, "to alice", uint8(mailbox.StateSent))
	ledger.Seed(alice, bob, "to bob", uint8(mailbox.StateSent))

	c := connected(t, ledger, alice)

	s := c.Snapshot()
	assert.Equal(t, alice, s.Account)
	require.Len(t, s.Received, 1)
	require.Len(t, s.Sent, 1)
	assert.Equal(t, "to alice", s.Received[0].Subject)
	assert.Equal(t, "to bob", s.Sent[0].Subject)
	assert.Equal(t, 1, ledger.Count(contract.MethodGetUserEmails))
	assert.Equal(t, 1, ledger.Count(contract.MethodGetSentEmails))
}

func TestConnect_NoProviderIsNoop(t *testing.T) {
	c := NewController(nil)
	err := c.Connect(context.Background(), ConnectorFunc(func(context.Context, string) (*gateway.Gateway, error) {
		return nil, wallet.ErrNoProvider
	}))

	require.ErrorIs(t, err, wallet.ErrNoProvider)
	assert.Equal(t, NewState(), c.Snapshot())
	assert.Nil(t, c.Gateway())
}

func TestConnect_FailureKeepsPriorState(t *testing.T) {
	ledger := contracttest.NewLedger()
	c := connected(t, ledger, alice)
	before := c.Snapshot()

	err := c.Connect(context.Background(), ConnectorFunc(func(context.Context, string) (*gateway.Gateway, error) {
		return nil, errors.New("user rejected request")
	}))

	require.Error(t, err)
	assert.Equal(t, before, c.Snapshot())
}

func TestSend_ClearsDraftAndGrowsSentList(t *testing.T) {
	ledger := contracttest.NewLedger()
	c := connected(t, ledger, alice)
	ctx := context.Background()
	before := len(c.Snapshot().Sent)

	c.SetDraft(Draft{Recipient: bob, Subject: "hello", Content: "body"})
	id, err := c.Send(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	s := c.Snapshot()
	assert.Equal(t, StatusSent, s.Status)
	assert.Equal(t, Draft{}, s.Draft)
	require.Len(t, s.Sent, before+1)
	assert.Equal(t, "hello", s.Sent[before].Subject)
	assert.Equal(t, mailbox.StateSent, s.Sent[before].State)
}

func TestSend_MissingFieldMakesNoCall(t *testing.T) {
	drafts := map[string]Draft{
		"recipient": {Subject: "s", Content: "c"},
		"subject":   {Recipient: bob, Content: "c"},
		"content":   {Recipient: bob, Subject: "s"},
	}
	for name, draft := range drafts {
		t.Run(name, func(t *testing.T) {
			ledger := contracttest.NewLedger()
			c := connected(t, ledger, alice)
			calls := len(ledger.Calls())

			c.SetDraft(draft)
			_, err := c.Send(context.Background())

			require.ErrorIs(t, err, gateway.ErrMissingFields)
			assert.Equal(t, StatusFillAllFields, c.Snapshot().Status)
			assert.Equal(t, draft, c.Snapshot().Draft)
			assert.Len(t, ledger.Calls(), calls)
		})
	}
}

func TestSend_NotConnected(t *testing.T) {
	c := NewController(nil)
	c.SetDraft(Draft{Recipient: bob, Subject: "s", Content: "c"})

	_, err := c.Send(context.Background())

	require.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, StatusFillAllFields, c.Snapshot().Status)
}

func TestSend_ConfidentialModeFails(t *testing.T) {
	ledger := contracttest.NewLedger()
	c := connected(t, ledger, alice, gateway.WithDemoMode(false))
	calls := len(ledger.Calls())

	c.SetDraft(Draft{Recipient: bob, Subject: "s", Content: "c"})
	_, err := c.Send(context.Background())

	require.ErrorIs(t, err, gateway.ErrConfidentialDisabled)
	assert.Equal(t, "Send failed: Production FHE path disabled", c.Snapshot().Status)
	assert.Len(t, ledger.Calls(), calls)
}

func TestSend_RemoteFailureKeepsDraft(t *testing.T) {
	ledger := contracttest.NewLedger()
	c := connected(t, ledger, alice)
	draft := Draft{Recipient: bob, Subject: "s", Content: "c"}
	ledger.FailWait(contract.MethodSendPlainEmail, errors.New("out of gas"))

	c.SetDraft(draft)
	_, err := c.Send(context.Background())

	require.ErrorIs(t, err, contract.ErrReverted)
	s := c.Snapshot()
	assert.Contains(t, s.Status, StatusSendFailed)
	assert.Contains(t, s.Status, "out of gas")
	assert.Equal(t, draft, s.Draft)
}

func TestMarkRead_ThenReloadShowsRead(t *testing.T) {
	ledger := contracttest.NewLedger()
	id := ledger.Seed(bob, alice, "unread", uint8(mailbox.StateSent))
	c := connected(t, ledger, alice)
	require.True(t, c.Snapshot().Received[0].CanMarkRead())

	require.NoError(t, c.MarkRead(context.Background(), id))

	s := c.Snapshot()
	assert.Equal(t, StatusMarkedRead, s.Status)
	require.Len(t, s.Received, 1)
	assert.Equal(t, mailbox.StateRead, s.Received[0].State)
	assert.False(t, s.Received[0].CanMarkRead())
}

func TestMarkRead_Failure(t *testing.T) {
	ledger := contracttest.NewLedger()
	id := ledger.Seed(bob, alice, "done", uint8(mailbox.StateRead))
	c := connected(t, ledger, alice)

	err := c.MarkRead(context.Background(), id)

	require.Error(t, err)
	assert.Equal(t, StatusMarkReadFail, c.Snapshot().Status)
}

func TestDelete_KeepsItemVisibleAsDeleted(t *testing.T) {
	ledger := contracttest.NewLedger()
	id := ledger.Seed(bob, alice, "bye", uint8(mailbox.StateSent))
	c := connected(t, ledger, alice)

	require.NoError(t, c.Delete(context.Background(), id))

	s := c.Snapshot()
	assert.Equal(t, StatusDeleted, s.Status)
	require.Len(t, s.Received, 1)
	assert.Equal(t, mailbox.StateDeleted, s.Received[0].State)
	assert.False(t, s.Received[0].CanMarkRead())
	assert.False(t, s.Received[0].CanDelete())
}

func TestDelete_Failure(t *testing.T) {
	ledger := contracttest.NewLedger()
	c := connected(t, ledger, alice)

	err := c.Delete(context.Background(), 42)

	require.Error(t, err)
	assert.Equal(t, StatusDeleteFail, c.Snapshot().Status)
}

func TestMutations_RequireConnection(t *testing.T) {
	c := NewController(nil)
	assert.ErrorIs(t, c.MarkRead(context.Background(), 1), ErrNotConnected)
	assert.ErrorIs(t, c.Delete(context.Background(), 1), ErrNotConnected)
	assert.Equal(t, "", c.Snapshot().Status)
}

func TestReload_FailureSetsStatus(t *testing.T) {
	ledger := contracttest.NewLedger()
	c := connected(t, ledger, alice)
	ledger.Fail(contract.MethodGetSentEmails, errors.New("rpc down"))

	c.Reload(context.Background())

	assert.Equal(t, StatusLoadFailed, c.Snapshot().Status)
}

func TestReload_TracksTotal(t *testing.T) {
	ledger := contracttest.NewLedger()
	ledger.Seed(bob, alice, "one", uint8(mailbox.StateSent))
	ledger.Seed(bob, bob, "two", uint8(mailbox.StateSent))

	c := connected(t, ledger, alice)
	s := c.Snapshot()
	assert.True(t, s.HasTotal)
	assert.Equal(t, uint64(2), s.Total)

	c.SetDraft(Draft{Recipient: bob, Subject: "s", Content: "c"})
	_, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), c.Snapshot().Total)
}

func TestReload_TotalFailureKeepsPrevious(t *testing.T) {
	ledger := contracttest.NewLedger()
	ledger.Seed(bob, alice, "one", uint8(mailbox.StateSent))
	c := connected(t, ledger, alice)
	ledger.Fail(contract.MethodGetTotalEmails, errors.New("rpc down"))
	ledger.Seed(bob, alice, "two", uint8(mailbox.StateSent))

	c.Reload(context.Background())

	s := c.Snapshot()
	assert.Len(t, s.Received, 2)
	assert.Equal(t, uint64(1), s.Total)
	assert.Equal(t, "", s.Status)
}

func TestSend_ReloadFailureOverridesSuccess(t *testing.T) {
	ledger := contracttest.NewLedger()
	c := connected(t, ledger, alice)
	ledger.Fail(contract.MethodGetUserEmails, errors.New("rpc down"))

	c.SetDraft(Draft{Recipient: bob, Subject: "s", Content: "c"})
	_, err := c.Send(context.Background())
	require.NoError(t, err)

	s := c.Snapshot()
	assert.Equal(t, StatusLoadFailed, s.Status)
	assert.Equal(t, Draft{}, s.Draft)
}
