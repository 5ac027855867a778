package services

import (
	"testing"
	"time"

	"block-engage-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordTaskCompletions seeds completed-task activity rows inside the
// challenge window without running the full task lifecycle.
func (e *testEnv) recordTaskCompletions(t *testing.T, accountID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		act := models.Activity{
			ID:         uuid.NewString(),
			AccountID:  accountID,
			Delta:      10,
			Reason:     models.ActivityTaskCompleted,
			OccurredAt: e.now,
		}
		require.NoError(t, e.db.Create(&act).Error)
	}
}

func TestChallengeWinnerPayout(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 100)
	bob := env.createAccount(t, "bob", "team_member", 100)

	ch, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 20,
		models.MetricTaskCompletion, 0, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusPending, ch.Status)

	// no tokens move until acceptance
	assert.Equal(t, int64(100), env.balance(t, alice.ID))
	assert.Equal(t, int64(100), env.balance(t, bob.ID))

	ch, err = env.challenges.AcceptChallenge(ch.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusActive, ch.Status)
	assert.Equal(t, int64(80), env.balance(t, alice.ID))
	assert.Equal(t, int64(80), env.balance(t, bob.ID))

	env.advance(24 * time.Hour)
	env.recordTaskCompletions(t, alice.ID, 3)
	env.recordTaskCompletions(t, bob.ID, 1)

	env.advance(7 * 24 * time.Hour)
	ch, err = env.challenges.FinalizeChallenge(ch.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ChallengeStatusCompleted, ch.Status)
	require.NotNil(t, ch.WinnerID)
	assert.Equal(t, alice.ID, *ch.WinnerID)
	assert.Equal(t, int64(3), ch.ChallengerScore)
	assert.Equal(t, int64(1), ch.OpponentScore)

	// pot 40, 5% fee 2, winner takes 38: alice 80+38=118, bob stays 80
	assert.Equal(t, int64(118), env.balance(t, alice.ID))
	assert.Equal(t, int64(80), env.balance(t, bob.ID))

	payouts := env.activities(t, alice.ID, models.ActivityH2HPayout)
	require.Len(t, payouts, 1)
	assert.Equal(t, int64(38), payouts[0].Delta)
}

func TestChallengeTieRefundsExactStakes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 50)
	bob := env.createAccount(t, "bob", "team_member", 50)

	ch, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricTaskCompletion, 0, 24*time.Hour)
	require.NoError(t, err)
	_, err = env.challenges.AcceptChallenge(ch.ID, bob.ID)
	require.NoError(t, err)

	env.advance(48 * time.Hour)
	ch, err = env.challenges.FinalizeChallenge(ch.ID)
	require.NoError(t, err)

	assert.Nil(t, ch.WinnerID)
	assert.Equal(t, int64(50), env.balance(t, alice.ID))
	assert.Equal(t, int64(50), env.balance(t, bob.ID))
	require.Len(t, env.activities(t, alice.ID, models.ActivityH2HRefund), 1)
	require.Len(t, env.activities(t, bob.ID, models.ActivityH2HRefund), 1)
}

func TestChallengeDoubleFinalize(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 50)
	bob := env.createAccount(t, "bob", "team_member", 50)

	ch, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricTaskCompletion, 0, 24*time.Hour)
	require.NoError(t, err)
	_, err = env.challenges.AcceptChallenge(ch.ID, bob.ID)
	require.NoError(t, err)

	env.advance(48 * time.Hour)
	env.recordTaskCompletions(t, alice.ID, 1)

	_, err = env.challenges.FinalizeChallenge(ch.ID)
	require.NoError(t, err)

	_, err = env.challenges.FinalizeChallenge(ch.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)

	// winner paid once: 50-10+19=59
	assert.Equal(t, int64(59), env.balance(t, alice.ID))
}

func TestChallengeCreateGuards(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 5)
	bob := env.createAccount(t, "bob", "team_member", 50)

	_, err := env.challenges.CreateChallenge(alice.ID, alice.ID, 10,
		models.MetricTaskCompletion, 0, 0)
	assert.ErrorIs(t, err, ErrSelfTarget)

	// challenger cannot fund the stake
	var funds *InsufficientFundsError
	_, err = env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricTaskCompletion, 0, 0)
	require.ErrorAs(t, err, &funds)

	_, err = env.challenges.CreateChallenge(bob.ID, alice.ID, 10,
		models.ChallengeMetric("mystery"), 0, 0)
	assert.Error(t, err)
}

func TestChallengeAcceptRollsBackWhenOpponentCannotPay(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 50)
	bob := env.createAccount(t, "bob", "team_member", 3)

	ch, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricTaskCompletion, 0, 0)
	require.NoError(t, err)

	_, err = env.challenges.AcceptChallenge(ch.ID, bob.ID)
	var funds *InsufficientFundsError
	require.ErrorAs(t, err, &funds)

	// everything rolled back: still pending, no stake held
	var reloaded models.Challenge
	require.NoError(t, env.db.First(&reloaded, "id = ?", ch.ID).Error)
	assert.Equal(t, models.ChallengeStatusPending, reloaded.Status)
	assert.Equal(t, int64(50), env.balance(t, alice.ID))
	assert.Equal(t, int64(3), env.balance(t, bob.ID))
}

func TestChallengeDeclineAndCancel(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 50)
	bob := env.createAccount(t, "bob", "team_member", 50)

	ch, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricTaskCompletion, 0, 0)
	require.NoError(t, err)

	// only the opponent may decline
	_, err = env.challenges.DeclineChallenge(ch.ID, alice.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	ch, err = env.challenges.DeclineChallenge(ch.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatusDeclined, ch.Status)
	assert.Equal(t, int64(50), env.balance(t, alice.ID))

	// cancel only works while pending
	ch2, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricTaskCompletion, 0, 0)
	require.NoError(t, err)
	_, err = env.challenges.AcceptChallenge(ch2.ID, bob.ID)
	require.NoError(t, err)
	_, err = env.challenges.CancelChallenge(ch2.ID, alice.ID, "team_member")
	var transition *InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestChallengeStreakMetric(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 50)
	bob := env.createAccount(t, "bob", "team_member", 50)

	require.NoError(t, env.db.Model(&models.Account{}).
		Where("id = ?", alice.ID).Update("current_streak", 9).Error)
	require.NoError(t, env.db.Model(&models.Account{}).
		Where("id = ?", bob.ID).Update("current_streak", 4).Error)

	ch, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricStreak, 0, 24*time.Hour)
	require.NoError(t, err)
	_, err = env.challenges.AcceptChallenge(ch.ID, bob.ID)
	require.NoError(t, err)

	env.advance(48 * time.Hour)
	ch, err = env.challenges.FinalizeChallenge(ch.ID)
	require.NoError(t, err)
	require.NotNil(t, ch.WinnerID)
	assert.Equal(t, alice.ID, *ch.WinnerID)
	assert.Equal(t, int64(9), ch.ChallengerScore)
}

func TestChallengeCustomMetricNeedsScorer(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 50)
	bob := env.createAccount(t, "bob", "team_member", 50)

	ch, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricCustom, 0, 24*time.Hour)
	require.NoError(t, err)
	_, err = env.challenges.AcceptChallenge(ch.ID, bob.ID)
	require.NoError(t, err)

	env.advance(48 * time.Hour)
	_, err = env.challenges.FinalizeChallenge(ch.ID)
	assert.ErrorIs(t, err, ErrUnsupportedMetric)

	// plug a scorer and it settles
	env.challenges.CustomScorer = func(tx *gorm.DB, ch *models.Challenge, accountID string) (int64, error) {
		if accountID == bob.ID {
			return 7, nil
		}
		return 2, nil
	}
	ch, err = env.challenges.FinalizeChallenge(ch.ID)
	require.NoError(t, err)
	require.NotNil(t, ch.WinnerID)
	assert.Equal(t, bob.ID, *ch.WinnerID)
}

func TestSettleExpiredSweep(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createAccount(t, "alice", "team_member", 100)
	bob := env.createAccount(t, "bob", "team_member", 100)
	carol := env.createAccount(t, "carol", "team_member", 100)

	expired, err := env.challenges.CreateChallenge(alice.ID, bob.ID, 10,
		models.MetricTaskCompletion, 0, 24*time.Hour)
	require.NoError(t, err)
	_, err = env.challenges.AcceptChallenge(expired.ID, bob.ID)
	require.NoError(t, err)

	env.advance(48 * time.Hour)

	// this one is still inside its window
	running, err := env.challenges.CreateChallenge(alice.ID, carol.ID, 10,
		models.MetricTaskCompletion, 0, 7*24*time.Hour)
	require.NoError(t, err)
	_, err = env.challenges.AcceptChallenge(running.ID, carol.ID)
	require.NoError(t, err)

	settled, err := env.challenges.SettleExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	var ch models.Challenge
	require.NoError(t, env.db.First(&ch, "id = ?", expired.ID).Error)
	assert.Equal(t, models.ChallengeStatusCompleted, ch.Status)
	ch = models.Challenge{} // clear stale primary key so GORM doesn't add it to the query
	require.NoError(t, env.db.First(&ch, "id = ?", running.ID).Error)
	assert.Equal(t, models.ChallengeStatusActive, ch.Status)
}
