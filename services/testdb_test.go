package services

import (
	"testing"
	"time"

	"block-engage-system/chain"
	"block-engage-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the services against an in-memory database with a
// controllable clock and a disabled chain mirror.
type testEnv struct {
	db         *gorm.DB
	ledger     *LedgerService
	lottery    *LotteryService
	tasks      *TaskService
	challenges *ChallengeService
	leagues    *LeagueService
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// named shared-cache DB so every pooled connection sees the same data
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.Activity{},
		&models.Task{},
		&models.Challenge{},
		&models.League{},
		&models.LeagueMembership{},
		&models.WeeklyScore{},
		&models.LotteryRound{},
		&models.LotteryTicket{},
		&models.MirrorJob{},
	))

	env := &testEnv{
		db: db,
		// a Monday, ISO week 10 of 2025
		now: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	mirror := chain.NewDisabled()
	env.ledger = NewLedgerService(db, mirror, nil)
	env.ledger.Now = clock
	env.lottery = NewLotteryService(db, env.ledger, mirror, nil)
	env.lottery.Now = clock
	env.tasks = NewTaskService(db, env.ledger, env.lottery, mirror, nil)
	env.tasks.Now = clock
	env.challenges = NewChallengeService(db, env.ledger, mirror, nil)
	env.challenges.Now = clock
	env.leagues = NewLeagueService(db, env.ledger, mirror, nil)
	env.leagues.Now = clock

	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) createAccount(t *testing.T, username, role string, balance int64) *models.Account {
	t.Helper()
	acct := &models.Account{
		ID:             uuid.NewString(),
		ExternalUserID: uuid.NewString(),
		Username:       username,
		Role:           role,
		Balance:        balance,
		StreakTier:     models.StreakTierNone,
	}
	require.NoError(t, e.db.Create(acct).Error)
	return acct
}

func (e *testEnv) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	var acct models.Account
	require.NoError(t, e.db.First(&acct, "id = ?", accountID).Error)
	return acct.Balance
}

func (e *testEnv) account(t *testing.T, accountID string) *models.Account {
	t.Helper()
	var acct models.Account
	require.NoError(t, e.db.First(&acct, "id = ?", accountID).Error)
	return &acct
}

func (e *testEnv) activities(t *testing.T, accountID, reason string) []models.Activity {
	t.Helper()
	var acts []models.Activity
	require.NoError(t, e.db.
		Where("account_id = ? AND reason = ?", accountID, reason).
		Order("occurred_at ASC").Find(&acts).Error)
	return acts
}

// completeFreshTask runs a full create/start/complete cycle for the
// assignee, returning the settled task.
func (e *testEnv) completeFreshTask(t *testing.T, lead, assignee *models.Account, reward int64) *models.Task {
	t.Helper()
	task, err := e.tasks.CreateTask(lead.ID, lead.Role, CreateTaskInput{
		Title:       "test task",
		AssigneeID:  assignee.ID,
		TokenReward: reward,
	})
	require.NoError(t, err)
	_, err = e.tasks.StartTask(task.ID, assignee.ID)
	require.NoError(t, err)
	task, err = e.tasks.CompleteTask(task.ID, assignee.ID)
	require.NoError(t, err)
	return task
}
