// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// SettlementScheduler drives the periodic settlement procedures. Every
// procedure is idempotent and re-derives its decisions from stored state,
// so a repeated or overlapping run is harmless.
type SettlementScheduler struct {
	Tasks      *TaskService
	Challenges *ChallengeService
	Leagues    *LeagueService
	Lottery    *LotteryService
	Now        func() time.Time
}

func NewSettlementScheduler(tasks *TaskService, challenges *ChallengeService, leagues *LeagueService, lottery *LotteryService) *SettlementScheduler {
	return &SettlementScheduler{
		Tasks:      tasks,
		Challenges: challenges,
		Leagues:    leagues,
		Lottery:    lottery,
		Now:        time.Now,
	}
}

// Start registers the settlement jobs and starts the scheduler. The returned
// scheduler should be shut down on process exit.
func (s *SettlementScheduler) Start() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Daily at midnight: zero out streaks with no activity yesterday
	_, err = sched.NewJob(
		gocron.CronJob("0 0 * * *", false),
		gocron.NewTask(func() {
			reset, err := s.Tasks.ResetInactiveStreaks()
			if err != nil {
				log.Printf("[Scheduler] Streak sweep failed: %v", err)
				return
			}
			if reset > 0 {
				log.Printf("[Scheduler] Reset %d inactive streaks", reset)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Monday 1 AM: score the week that just ended for every active league
	_, err = sched.NewJob(
		gocron.CronJob("0 1 * * 1", false),
		gocron.NewTask(func() {
			year, week := s.Now().UTC().Add(-24 * time.Hour).ISOWeek()
			log.Printf("[Scheduler] Scoring league week %d/%d", week, year)
			if err := s.Leagues.ScoreAllLeagues(week, year); err != nil {
				log.Printf("[Scheduler] League scoring failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Friday 5 PM: draw the lottery round if it has ended
	_, err = sched.NewJob(
		gocron.CronJob("0 17 * * 5", false),
		gocron.NewTask(func() {
			log.Println("[Scheduler] Running lottery draw check")
			if err := s.Lottery.AutoDraw(); err != nil {
				log.Printf("[Scheduler] Lottery draw failed: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	// Hourly: settle H2H challenges whose window has closed
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			settled, err := s.Challenges.SettleExpired()
			if err != nil {
				log.Printf("[Scheduler] H2H settlement sweep failed: %v", err)
				return
			}
			if settled > 0 {
				log.Printf("✅ Settled %d expired challenges", settled)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
