package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbgateway/internal/apperr"
)

func creditReq(account string, amount int64, ref string) CreditRequest {
	return CreditRequest{AccountID: account, Amount: i64(amount), Reference: ref, Event: ev("bank.credited")}
}

func TestCreateAccount_InitialBalance(t *testing.T) {
	f := newFixture(t)
	f.agent(t, "a-1")

	resp, err := f.gw.CreateAccount(context.Background(), CreateAccountRequest{
		AccountID: "a-1", InitialBalance: i64(100), Event: ev("account.created"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), resp.Balance)
	assert.Equal(t, int64(100), f.balance(t, "a-1"))

	var kind, ref string
	var amount, after int64
	require.NoError(t, f.store.DB().QueryRow(
		"SELECT kind, amount, balance_after, reference FROM ledger_entries WHERE account_id = 'a-1'",
	).Scan(&kind, &amount, &after, &ref))
	assert.Equal(t, "credit", kind)
	assert.Equal(t, int64(100), amount)
	assert.Equal(t, int64(100), after)
	assert.Equal(t, "initial_balance", ref)
}

func TestCreateAccount_ZeroBalanceWritesNoLedger(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a-1", 0)

	assert.Equal(t, 0, f.count(t, "ledger_entries"))
}

func TestCreateAccount_Errors(t *testing.T) {
	f := newFixture(t)
	f.account(t, "a-1", 0)
	ctx := context.Background()

	_, err := f.gw.CreateAccount(ctx, CreateAccountRequest{AccountID: "a-1", Event: ev("account.created")})
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountExists), "got %v", err)

	_, err = f.gw.CreateAccount(ctx, CreateAccountRequest{AccountID: "ghost", Event: ev("account.created")})
	assert.True(t, apperr.HasCode(err, apperr.CodeForeignKeyViolation), "got %v", err)

	f.agent(t, "a-2")
	_, err = f.gw.CreateAccount(ctx, CreateAccountRequest{AccountID: "a-2", InitialBalance: i64(-5), Event: ev("account.created")})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidAmount), "got %v", err)
}

func TestCredit_ReplaySameReference(t *testing.T) {
	f := newFixture(t)
	f.account(t, "A", 0)
	ctx := context.Background()
	before := f.count(t, "events")

	first, err := f.gw.Credit(ctx, creditReq("A", 50, "r1"))
	require.NoError(t, err)
	second, err := f.gw.Credit(ctx, creditReq("A", 50, "r1"))
	require.NoError(t, err)

	assert.Equal(t, first.TxID, second.TxID)
	assert.Equal(t, int64(50), second.BalanceAfter)
	assert.True(t, second.Replayed)
	assert.Equal(t, int64(50), f.balance(t, "A"))
	assert.Equal(t, before+1, f.count(t, "events"))
}

func TestCredit_ReferenceConflict(t *testing.T) {
	f := newFixture(t)
	f.account(t, "A", 0)
	ctx := context.Background()

	_, err := f.gw.Credit(ctx, creditReq("A", 50, "r1"))
	require.NoError(t, err)
	eventsBefore := f.maxEventID(t)

	_, err = f.gw.Credit(ctx, creditReq("A", 60, "r1"))
	assert.True(t, apperr.HasCode(err, apperr.CodeReferenceConflict), "got %v", err)
	assert.Equal(t, int64(50), f.balance(t, "A"))
	assert.Equal(t, eventsBefore, f.maxEventID(t))

	// The same reference on another account is unrelated.
	f.account(t, "B", 0)
	_, err = f.gw.Credit(ctx, creditReq("B", 60, "r1"))
	require.NoError(t, err)
}

func TestCredit_Errors(t *testing.T) {
	f := newFixture(t)
	f.account(t, "A", 10)
	ctx := context.Background()

	_, err := f.gw.Credit(ctx, creditReq("nobody", 5, "r"))
	assert.True(t, apperr.HasCode(err, apperr.CodeAccountNotFound), "got %v", err)

	_, err = f.gw.Credit(ctx, creditReq("A", 0, "r"))
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidAmount), "got %v", err)
	assert.Equal(t, int64(10), f.balance(t, "A"))

	_, err = f.gw.Credit(ctx, CreditRequest{AccountID: "A", Reference: "r", Event: ev("bank.credited")})
	assert.True(t, apperr.HasCode(err, apperr.CodeMissingField))
}
