package services

import (
	"testing"

	"block-engage-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLeagueNormalizesNameAndCode(t *testing.T) {
	env := newTestEnv(t)
	lead := env.createAccount(t, "lead", "project_lead", 0)

	league, err := env.leagues.CreateLeague(lead.ID, lead.Role, CreateLeagueInput{
		Name: "spring sprint league",
	})
	require.NoError(t, err)
	assert.Equal(t, "Spring Sprint League", league.Name)
	assert.Equal(t, "spring-sprint-league", league.Code)
	assert.True(t, league.IsActive)
	assert.Equal(t, 50, league.MaxMembers)

	member := env.createAccount(t, "member", "team_member", 0)
	_, err = env.leagues.CreateLeague(member.ID, member.Role, CreateLeagueInput{Name: "nope"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestJoinLeagueDuplicateAndCapacity(t *testing.T) {
	env := newTestEnv(t)
	lead := env.createAccount(t, "lead", "project_lead", 0)
	league, err := env.leagues.CreateLeague(lead.ID, lead.Role, CreateLeagueInput{
		Name:       "tiny",
		MaxMembers: 2,
	})
	require.NoError(t, err)

	alice := env.createAccount(t, "alice", "team_member", 0)
	bob := env.createAccount(t, "bob", "team_member", 0)
	carol := env.createAccount(t, "carol", "team_member", 0)

	_, err = env.leagues.JoinLeague(league.ID, alice.ID)
	require.NoError(t, err)
	_, err = env.leagues.JoinLeague(league.ID, alice.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = env.leagues.JoinLeague(league.ID, bob.ID)
	require.NoError(t, err)

	var capacity *CapacityError
	_, err = env.leagues.JoinLeague(league.ID, carol.ID)
	require.ErrorAs(t, err, &capacity)
	assert.Equal(t, 2, capacity.Limit)
}

func TestScoreWeekIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	lead := env.createAccount(t, "lead", "project_lead", 0)
	dev := env.createAccount(t, "dev", "team_member", 0)

	league, err := env.leagues.CreateLeague(lead.ID, lead.Role, CreateLeagueInput{Name: "weekly"})
	require.NoError(t, err)
	membership, err := env.leagues.JoinLeague(league.ID, dev.ID)
	require.NoError(t, err)

	// two completed tasks inside ISO week 10 of 2025 (env clock)
	env.recordTaskCompletions(t, dev.ID, 2)

	// 2 tasks x 10 + floor(0.1 x 20 tokens) = 22 points
	require.NoError(t, env.leagues.ScoreWeek(league.ID, 10, 2025))

	scores, err := env.leagues.WeeklyScores(league.ID, 10, 2025)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, int64(22), scores[0].Points)
	assert.Equal(t, int64(2), scores[0].TasksCompleted)
	assert.Equal(t, int64(20), scores[0].TokensEarned)

	// a re-run updates in place instead of accumulating
	require.NoError(t, env.leagues.ScoreWeek(league.ID, 10, 2025))

	scores, err = env.leagues.WeeklyScores(league.ID, 10, 2025)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, int64(22), scores[0].Points)

	var m models.LeagueMembership
	require.NoError(t, env.db.First(&m, "id = ?", membership.ID).Error)
	assert.Equal(t, int64(22), m.TotalPoints)
}

func TestEndSeasonPaysTopThreeOnce(t *testing.T) {
	env := newTestEnv(t)
	lead := env.createAccount(t, "lead", "project_lead", 0)
	league, err := env.leagues.CreateLeague(lead.ID, lead.Role, CreateLeagueInput{Name: "season"})
	require.NoError(t, err)

	points := []int64{400, 300, 200, 100}
	var members []*models.Account
	for _, p := range points {
		acct := env.createAccount(t, "member", "team_member", 0)
		members = append(members, acct)
		m, err := env.leagues.JoinLeague(league.ID, acct.ID)
		require.NoError(t, err)
		require.NoError(t, env.db.Model(&models.LeagueMembership{}).
			Where("id = ?", m.ID).Update("total_points", p).Error)
	}

	_, err = env.leagues.EndSeason(league.ID, "team_member")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	closed, err := env.leagues.EndSeason(league.ID, "admin")
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	require.NotNil(t, closed.EndedAt)

	assert.Equal(t, int64(100), env.balance(t, members[0].ID))
	assert.Equal(t, int64(50), env.balance(t, members[1].ID))
	assert.Equal(t, int64(25), env.balance(t, members[2].ID))
	assert.Equal(t, int64(0), env.balance(t, members[3].ID))

	var m models.LeagueMembership
	require.NoError(t, env.db.
		First(&m, "league_id = ? AND account_id = ?", league.ID, members[3].ID).Error)
	require.NotNil(t, m.FinalRank)
	assert.Equal(t, 4, *m.FinalRank)

	// ending an ended season is a no-op, nobody gets paid twice
	_, err = env.leagues.EndSeason(league.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(100), env.balance(t, members[0].ID))
}

func TestStandingsOrder(t *testing.T) {
	env := newTestEnv(t)
	lead := env.createAccount(t, "lead", "project_lead", 0)
	league, err := env.leagues.CreateLeague(lead.ID, lead.Role, CreateLeagueInput{Name: "table"})
	require.NoError(t, err)

	low := env.createAccount(t, "low", "team_member", 0)
	high := env.createAccount(t, "high", "team_member", 0)
	for _, acct := range []*models.Account{low, high} {
		_, err := env.leagues.JoinLeague(league.ID, acct.ID)
		require.NoError(t, err)
	}
	require.NoError(t, env.db.Model(&models.LeagueMembership{}).
		Where("league_id = ? AND account_id = ?", league.ID, high.ID).
		Update("total_points", 90).Error)

	rows, err := env.leagues.Standings(league.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "high", rows[0].Username)
	assert.Equal(t, int64(90), rows[0].TotalPoints)
	assert.Equal(t, "low", rows[1].Username)
}
