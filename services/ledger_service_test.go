package services

import (
	"testing"

	"block-engage-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditAppendsActivity(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, "alice", "team_member", 0)

	act, err := env.ledger.Credit(acct.ID, 25, models.ActivityAdminAward, "welcome bonus")
	require.NoError(t, err)

	assert.Equal(t, int64(25), env.balance(t, acct.ID))
	assert.Equal(t, int64(25), act.Delta)
	assert.Equal(t, models.ActivityAdminAward, act.Reason)

	acts := env.activities(t, acct.ID, models.ActivityAdminAward)
	require.Len(t, acts, 1)
	assert.Equal(t, "welcome bonus", acts[0].Detail)
}

func TestCreditRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, "alice", "team_member", 0)

	_, err := env.ledger.Credit(acct.ID, 0, models.ActivityAdminAward, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.ledger.Credit(acct.ID, -5, models.ActivityAdminAward, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.ledger.Credit("no-such-account", 10, models.ActivityAdminAward, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDebitInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, "alice", "team_member", 30)

	_, err := env.ledger.Debit(acct.ID, 50, models.ActivityLotteryPurchase, "")
	var funds *InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, int64(50), funds.Required)
	assert.Equal(t, int64(30), funds.Available)

	// balance untouched, no activity written
	assert.Equal(t, int64(30), env.balance(t, acct.ID))
	assert.Empty(t, env.activities(t, acct.ID, models.ActivityLotteryPurchase))
}

func TestGiftTokensConservesTotal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 100)
	bob := env.createAccount(t, "bob", "team_member", 40)

	require.NoError(t, env.ledger.GiftTokens(alice.ID, bob.ID, 30, "thanks for the review"))

	assert.Equal(t, int64(70), env.balance(t, alice.ID))
	assert.Equal(t, int64(70), env.balance(t, bob.ID))

	out := env.activities(t, alice.ID, models.ActivityTokensGifted)
	require.Len(t, out, 1)
	assert.Equal(t, int64(-30), out[0].Delta)

	in := env.activities(t, bob.ID, models.ActivityTokensReceived)
	require.Len(t, in, 1)
	assert.Equal(t, int64(30), in[0].Delta)
}

func TestGiftTokensRejectsSelfAndUnknownRecipient(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 100)

	err := env.ledger.GiftTokens(alice.ID, alice.ID, 10, "")
	assert.ErrorIs(t, err, ErrSelfTarget)

	err = env.ledger.GiftTokens(alice.ID, "no-such-account", 10, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(100), env.balance(t, alice.ID))
}

func TestGiftTokensRollsBackOnInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 5)
	bob := env.createAccount(t, "bob", "team_member", 0)

	err := env.ledger.GiftTokens(alice.ID, bob.ID, 10, "")
	var funds *InsufficientFundsError
	require.ErrorAs(t, err, &funds)

	assert.Equal(t, int64(5), env.balance(t, alice.ID))
	assert.Equal(t, int64(0), env.balance(t, bob.ID))
}

func TestRecognizePeerDefaultsAmount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 50)
	bob := env.createAccount(t, "bob", "team_member", 0)

	require.NoError(t, env.ledger.RecognizePeer(alice.ID, bob.ID, 0, "great pairing session"))

	assert.Equal(t, int64(50-DefaultRecognitionAmount), env.balance(t, alice.ID))
	assert.Equal(t, int64(DefaultRecognitionAmount), env.balance(t, bob.ID))

	require.Len(t, env.activities(t, alice.ID, models.ActivityRecognitionGiven), 1)
	received := env.activities(t, bob.ID, models.ActivityRecognitionReceived)
	require.Len(t, received, 1)
	assert.Equal(t, int64(DefaultRecognitionAmount), received[0].Delta)
}

func TestLeaderboardOrdersByBalance(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "carol", "team_member", 10)
	env.createAccount(t, "alice", "team_member", 300)
	env.createAccount(t, "bob", "team_member", 120)

	top, err := env.ledger.Leaderboard(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].Username)
	assert.Equal(t, "bob", top[1].Username)
}
