// services/league_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"block-engage-system/chain"
	"block-engage-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Season prizes for the top three ranks.
var leaguePrizes = []int64{100, 50, 25}

// DefaultSeasonDuration is used when a league is created without one.
const DefaultSeasonDuration = 90 * 24 * time.Hour

var titleCaser = cases.Title(language.English)

// LeagueService owns the season lifecycle and the weekly scoring pass.
// Weekly scoring is an upsert keyed by (membership, week, year) and the
// membership total is always recomputed as the full sum of its weekly
// rows, so re-running a pass is harmless.
type LeagueService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Mirror   chain.Mirror
	Notifier Notifier
	Now      func() time.Time
}

func NewLeagueService(db *gorm.DB, ledger *LedgerService, mirror chain.Mirror, notifier Notifier) *LeagueService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &LeagueService{DB: db, Ledger: ledger, Mirror: mirror, Notifier: notifier, Now: time.Now}
}

// CreateLeagueInput carries the creator-supplied fields.
type CreateLeagueInput struct {
	Name        string
	Description string
	Tier        int
	MaxMembers  int
	Duration    time.Duration
}

// CreateLeague opens a new season. Requires project_lead or admin.
func (s *LeagueService) CreateLeague(actorID, actorRole string, in CreateLeagueInput) (*models.League, error) {
	if actorRole != "project_lead" && actorRole != "admin" {
		return nil, ErrNotAuthorized
	}
	if in.Name == "" {
		return nil, errors.New("name is required")
	}
	if in.Tier <= 0 {
		in.Tier = 1
	}
	if in.MaxMembers <= 0 {
		in.MaxMembers = 50
	}
	if in.Duration <= 0 {
		in.Duration = DefaultSeasonDuration
	}

	now := s.Now()
	league := &models.League{
		ID:          uuid.NewString(),
		Name:        titleCaser.String(in.Name),
		Code:        slug.Make(in.Name),
		Description: in.Description,
		Tier:        in.Tier,
		MaxMembers:  in.MaxMembers,
		SeasonStart: now,
		SeasonEnd:   now.Add(in.Duration),
		IsActive:    true,
		CreatedByID: actorID,
	}
	if err := s.DB.Create(league).Error; err != nil {
		return nil, err
	}

	s.mirrorCreate(league)
	return league, nil
}

// JoinLeague adds an account to an open league, guarding capacity and
// duplicate membership inside one transaction.
func (s *LeagueService) JoinLeague(leagueID, accountID string) (*models.LeagueMembership, error) {
	acct, err := s.Ledger.GetAccount(accountID)
	if err != nil {
		return nil, err
	}

	var membership *models.LeagueMembership
	var league models.League
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&league, "id = ? AND is_active = ?", leagueID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.LeagueMembership{}).
			Where("league_id = ? AND account_id = ?", leagueID, accountID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyMember
		}

		var members int64
		if err := tx.Model(&models.LeagueMembership{}).
			Where("league_id = ?", leagueID).Count(&members).Error; err != nil {
			return err
		}
		if int(members) >= league.MaxMembers {
			return &CapacityError{Resource: "league " + league.Code, Limit: league.MaxMembers}
		}

		membership = &models.LeagueMembership{
			ID:        uuid.NewString(),
			LeagueID:  leagueID,
			AccountID: accountID,
			JoinedAt:  s.Now(),
		}
		return tx.Create(membership).Error
	})
	if err != nil {
		return nil, err
	}

	s.mirrorJoin(&league, acct)
	return membership, nil
}

// LeaveLeague removes an account's membership from an active league.
func (s *LeagueService) LeaveLeague(leagueID, accountID string) error {
	res := s.DB.Where("league_id = ? AND account_id = ?", leagueID, accountID).
		Delete(&models.LeagueMembership{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ScoreWeek runs the weekly scoring pass for one league. Idempotent: the
// WeeklyScore row is upserted by (membership, week, year) and the cached
// total is recomputed as the sum of all weekly rows, never incremented.
func (s *LeagueService) ScoreWeek(leagueID string, week, year int) error {
	start, end := isoWeekWindow(year, week)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var league models.League
		if err := tx.First(&league, "id = ? AND is_active = ?", leagueID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var memberships []models.LeagueMembership
		if err := tx.Where("league_id = ?", leagueID).Find(&memberships).Error; err != nil {
			return err
		}

		for _, m := range memberships {
			st, err := activityStats(tx, m.AccountID, start, end)
			if err != nil {
				return err
			}

			score := models.WeeklyScore{
				ID:               uuid.NewString(),
				MembershipID:     m.ID,
				WeekNumber:       week,
				Year:             year,
				Points:           st.Points(),
				TasksCompleted:   st.TasksCompleted,
				TokensEarned:     st.TokensEarned,
				PeerRecognitions: st.PeerRecognitions,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "membership_id"}, {Name: "week_number"}, {Name: "year"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"points", "tasks_completed", "tokens_earned", "peer_recognitions",
				}),
			}).Create(&score).Error
			if err != nil {
				return err
			}

			// full recomputation keeps the cache correct under re-runs
			var total int64
			err = tx.Model(&models.WeeklyScore{}).
				Select("COALESCE(SUM(points), 0)").
				Where("membership_id = ?", m.ID).
				Scan(&total).Error
			if err != nil {
				return err
			}
			if err := tx.Model(&models.LeagueMembership{}).
				Where("id = ?", m.ID).
				Update("total_points", total).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Notifier.Emit(EventLeagueScoresUpdated, map[string]interface{}{
		"league_id": leagueID, "week": week, "year": year,
	})
	return nil
}

// ScoreAllLeagues runs the weekly pass for every active league; the
// scheduler calls it with the current ISO week.
func (s *LeagueService) ScoreAllLeagues(week, year int) error {
	var leagues []models.League
	if err := s.DB.Where("is_active = ?", true).Find(&leagues).Error; err != nil {
		return err
	}
	for _, l := range leagues {
		if err := s.ScoreWeek(l.ID, week, year); err != nil {
			log.Printf("[LEAGUE] weekly scoring failed for %s: %v", l.Code, err)
		}
	}
	return nil
}

// EndSeason ranks the members, pays the top three and closes the league.
// A second call finds no active league and is a no-op.
func (s *LeagueService) EndSeason(leagueID, actorRole string) (*models.League, error) {
	if actorRole != "admin" && actorRole != "system" {
		return nil, ErrNotAuthorized
	}

	now := s.Now()
	var league models.League
	var winners []models.LeagueMembership
	var prizeActs []*models.Activity

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&league, "id = ?", leagueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.League{}).
			Where("id = ? AND is_active = ?", leagueID, true).
			Updates(map[string]interface{}{"is_active": false, "ended_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// season already ended
			return nil
		}

		var memberships []models.LeagueMembership
		if err := tx.Where("league_id = ?", leagueID).
			Order("total_points DESC, joined_at ASC").
			Find(&memberships).Error; err != nil {
			return err
		}

		for i := range memberships {
			rank := i + 1
			if err := tx.Model(&models.LeagueMembership{}).
				Where("id = ?", memberships[i].ID).
				Update("final_rank", rank).Error; err != nil {
				return err
			}

			if rank <= len(leaguePrizes) {
				act, err := s.Ledger.CreditTx(tx, memberships[i].AccountID,
					leaguePrizes[rank-1], models.ActivityLeaguePrize, league.Code)
				if err != nil {
					return err
				}
				winners = append(winners, memberships[i])
				prizeActs = append(prizeActs, act)
			}
		}

		league.IsActive = false
		league.EndedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, w := range winners {
		s.Ledger.MirrorAward(w.AccountID, prizeActs[i], leaguePrizes[i], "League season prize: "+league.Code)
	}
	if len(winners) > 0 {
		s.Notifier.Emit(EventLeagueSeasonEnded, map[string]interface{}{
			"league_id": league.ID, "winners": len(winners),
		})
	}
	return &league, nil
}

// StandingsEntry is one row of a league table.
type StandingsEntry struct {
	Rank          int    `json:"rank"`
	AccountID     string `json:"account_id"`
	Username      string `json:"username"`
	TotalPoints   int64  `json:"total_points"`
	CurrentStreak int    `json:"current_streak"`
}

// Standings returns the league table ordered by total points.
func (s *LeagueService) Standings(leagueID string) ([]StandingsEntry, error) {
	var rows []StandingsEntry
	err := s.DB.Model(&models.LeagueMembership{}).
		Select("league_memberships.account_id, accounts.username, league_memberships.total_points, accounts.current_streak").
		Joins("JOIN accounts ON accounts.id = league_memberships.account_id").
		Where("league_memberships.league_id = ?", leagueID).
		Order("league_memberships.total_points DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// ListLeagues returns all active leagues.
func (s *LeagueService) ListLeagues() ([]models.League, error) {
	var leagues []models.League
	err := s.DB.Where("is_active = ?", true).Order("created_at DESC").Find(&leagues).Error
	return leagues, err
}

// WeeklyScores returns a league's scores for one week.
func (s *LeagueService) WeeklyScores(leagueID string, week, year int) ([]models.WeeklyScore, error) {
	var scores []models.WeeklyScore
	err := s.DB.Model(&models.WeeklyScore{}).
		Joins("JOIN league_memberships ON league_memberships.id = weekly_scores.membership_id").
		Where("league_memberships.league_id = ? AND weekly_scores.week_number = ? AND weekly_scores.year = ?",
			leagueID, week, year).
		Order("weekly_scores.points DESC").
		Find(&scores).Error
	return scores, err
}

func (s *LeagueService) mirrorCreate(league *models.League) {
	if s.Mirror == nil || s.Mirror.Disabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ref, err := s.Mirror.CreateLeague(ctx, league.Name, league.Tier, league.MaxMembers,
		int64(league.SeasonEnd.Sub(league.SeasonStart).Seconds()))
	if err != nil {
		log.Printf("[MIRROR] create league %s on chain failed: %v", league.Code, err)
		return
	}
	if ref == "" {
		return
	}
	league.MirrorLeagueID = &ref
	if err := s.DB.Model(&models.League{}).Where("id = ?", league.ID).
		Update("mirror_league_id", ref).Error; err != nil {
		log.Printf("[MIRROR] failed to store chain ref for league %s: %v", league.Code, err)
	}
}

func (s *LeagueService) mirrorJoin(league *models.League, acct *models.Account) {
	if s.Mirror == nil || s.Mirror.Disabled() ||
		league.MirrorLeagueID == nil || acct.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.Mirror.JoinLeague(ctx, *league.MirrorLeagueID, *acct.WalletAddress); err != nil {
		log.Printf("[MIRROR] join league %s on chain failed: %v", league.Code, err)
	}
}
