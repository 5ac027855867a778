package services

import (
	"testing"
	"time"

	"block-engage-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureActiveRoundIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.lottery.EnsureActiveRound()
	require.NoError(t, err)
	second, err := env.lottery.EnsureActiveRound()
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var active int64
	require.NoError(t, env.db.Model(&models.LotteryRound{}).
		Where("is_active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestBuyTicketsDebitsAndCaps(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.lottery.EnsureActiveRound()
	require.NoError(t, err)
	alice := env.createAccount(t, "alice", "team_member", 100)

	tickets, err := env.lottery.BuyTickets(alice.ID, 3)
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, int64(100-3*TicketPrice), env.balance(t, alice.ID))

	acts := env.activities(t, alice.ID, models.ActivityLotteryPurchase)
	require.Len(t, acts, 1)
	assert.Equal(t, int64(-3*TicketPrice), acts[0].Delta)

	// per-round cap counts tickets already held
	var capacity *CapacityError
	_, err = env.lottery.BuyTickets(alice.ID, 8)
	require.ErrorAs(t, err, &capacity)

	// quantity outside a single purchase's range
	_, err = env.lottery.BuyTickets(alice.ID, 11)
	require.ErrorAs(t, err, &capacity)
	_, err = env.lottery.BuyTickets(alice.ID, 0)
	require.ErrorAs(t, err, &capacity)

	// failed purchases moved nothing
	assert.Equal(t, int64(100-3*TicketPrice), env.balance(t, alice.ID))
}

func TestBuyTicketsInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.lottery.EnsureActiveRound()
	require.NoError(t, err)
	poor := env.createAccount(t, "poor", "team_member", TicketPrice-1)

	var funds *InsufficientFundsError
	_, err = env.lottery.BuyTickets(poor.ID, 1)
	require.ErrorAs(t, err, &funds)

	round, err := env.lottery.CurrentRound()
	require.NoError(t, err)
	tickets, err := env.lottery.TicketsFor(round.ID, poor.ID)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestDrawPicksSeededWinnerAndRollsRound(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.lottery.EnsureActiveRound()
	require.NoError(t, err)

	alice := env.createAccount(t, "alice", "team_member", 100)
	bob := env.createAccount(t, "bob", "team_member", 100)

	// ticket pool in creation order: alice, alice, bob
	_, err = env.lottery.BuyTickets(alice.ID, 2)
	require.NoError(t, err)
	_, err = env.lottery.BuyTickets(bob.ID, 1)
	require.NoError(t, err)

	// index 1 belongs to alice
	env.lottery.RandIntn = func(n int) int {
		require.Equal(t, 3, n)
		return 1
	}

	_, err = env.lottery.Draw()
	assert.ErrorIs(t, err, ErrRoundNotEnded)

	env.advance(RoundDuration + time.Hour)
	closed, err := env.lottery.Draw()
	require.NoError(t, err)

	assert.Equal(t, first.ID, closed.ID)
	assert.False(t, closed.IsActive)
	require.NotNil(t, closed.WinnerID)
	assert.Equal(t, alice.ID, *closed.WinnerID)
	require.NotNil(t, closed.DrawnAt)

	// prize on top of what was left after buying two tickets
	assert.Equal(t, int64(100-2*TicketPrice+LotteryPrize), env.balance(t, alice.ID))
	prize := env.activities(t, alice.ID, models.ActivityLotteryPrize)
	require.Len(t, prize, 1)
	assert.Equal(t, int64(LotteryPrize), prize[0].Delta)

	// winning ticket consumed
	var used int64
	require.NoError(t, env.db.Model(&models.LotteryTicket{}).
		Where("round_id = ? AND is_used = ?", first.ID, true).Count(&used).Error)
	assert.Equal(t, int64(1), used)

	// the successor round opened inside the same settlement
	next, err := env.lottery.CurrentRound()
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	var active int64
	require.NoError(t, env.db.Model(&models.LotteryRound{}).
		Where("is_active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestDrawWithNoTicketsHoldsRoundOpen(t *testing.T) {
	env := newTestEnv(t)
	round, err := env.lottery.EnsureActiveRound()
	require.NoError(t, err)

	env.advance(RoundDuration + time.Hour)
	_, err = env.lottery.Draw()
	assert.ErrorIs(t, err, ErrNoTickets)

	// AutoDraw swallows the condition and leaves the round active
	require.NoError(t, env.lottery.AutoDraw())
	current, err := env.lottery.CurrentRound()
	require.NoError(t, err)
	assert.Equal(t, round.ID, current.ID)
}

func TestIssueTicketGrant(t *testing.T) {
	env := newTestEnv(t)
	round, err := env.lottery.EnsureActiveRound()
	require.NoError(t, err)
	alice := env.createAccount(t, "alice", "team_member", 0)

	require.NoError(t, env.lottery.IssueTicket(alice.ID, ""))

	tickets, err := env.lottery.TicketsFor(round.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, models.TicketFromAdmin, tickets[0].EarnedFrom)

	// earned tickets are free
	assert.Equal(t, int64(0), env.balance(t, alice.ID))
}
