// services/challenge_service.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"block-engage-system/chain"
	"block-engage-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultChallengeStake applies when a challenge is created without a
	// stake amount.
	DefaultChallengeStake = 10
	// DefaultChallengeDuration applies when no duration is given.
	DefaultChallengeDuration = 7 * 24 * time.Hour
	// platformFeePct is withheld from the winner's payout. Ties refund the
	// exact stakes with no fee.
	platformFeePct = 5
)

// CustomScorer computes a side's score for the custom metric. The metric
// is an extension point: finalize rejects custom challenges until a
// scorer is configured.
type CustomScorer func(tx *gorm.DB, ch *models.Challenge, accountID string) (int64, error)

// ChallengeService owns the head-to-head lifecycle. Once a challenge is
// active the house holds 2x stake; every terminal settlement
// redistributes it in full, exactly once.
type ChallengeService struct {
	DB           *gorm.DB
	Ledger       *LedgerService
	Mirror       chain.Mirror
	Notifier     Notifier
	CustomScorer CustomScorer
	Now          func() time.Time
}

func NewChallengeService(db *gorm.DB, ledger *LedgerService, mirror chain.Mirror, notifier Notifier) *ChallengeService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &ChallengeService{DB: db, Ledger: ledger, Mirror: mirror, Notifier: notifier, Now: time.Now}
}

// CreateChallenge records a pending challenge. No tokens move until the
// opponent accepts; the challenger's balance is only prechecked so an
// obviously unfundable wager is rejected up front.
func (s *ChallengeService) CreateChallenge(challengerID, opponentID string, stake int64, metric models.ChallengeMetric, targetValue int64, duration time.Duration) (*models.Challenge, error) {
	if challengerID == opponentID {
		return nil, ErrSelfTarget
	}
	if stake <= 0 {
		stake = DefaultChallengeStake
	}
	if duration <= 0 {
		duration = DefaultChallengeDuration
	}
	switch metric {
	case models.MetricTaskCompletion, models.MetricTokenEarning, models.MetricStreak, models.MetricCustom:
	default:
		return nil, errors.New("unknown challenge metric")
	}

	challenger, err := s.Ledger.GetAccount(challengerID)
	if err != nil {
		return nil, err
	}
	if challenger.Balance < stake {
		return nil, &InsufficientFundsError{AccountID: challengerID, Required: stake, Available: challenger.Balance}
	}
	opponent, err := s.Ledger.GetAccount(opponentID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	ch := &models.Challenge{
		ID:           uuid.NewString(),
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		Metric:       metric,
		TargetValue:  targetValue,
		Stake:        stake,
		Status:       models.ChallengeStatusPending,
		StartAt:      now,
		EndAt:        now.Add(duration),
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, err
	}

	s.mirrorCreate(ch, challenger, opponent)
	s.Notifier.Emit(EventH2HChallengeCreated, map[string]interface{}{
		"challenge_id": ch.ID, "challenger_id": challengerID,
		"opponent_id": opponentID, "stake": stake,
	})
	return ch, nil
}

// AcceptChallenge commits both sides: each stake is debited in the same
// transaction that flips the status, and the competition window restarts
// at acceptance time.
func (s *ChallengeService) AcceptChallenge(challengeID, actorID string) (*models.Challenge, error) {
	ch, err := s.getChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	if ch.OpponentID != actorID {
		return nil, ErrNotAuthorized
	}

	now := s.Now()
	window := ch.EndAt.Sub(ch.StartAt)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challengeID, models.ChallengeStatusPending).
			Updates(map[string]interface{}{
				"status":   models.ChallengeStatusActive,
				"start_at": now,
				"end_at":   now.Add(window),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &InvalidTransitionError{Entity: "challenge", Current: string(ch.Status), Attempted: "accept"}
		}

		if _, err := s.Ledger.DebitTx(tx, ch.ChallengerID, ch.Stake, models.ActivityH2HStake, ch.ID); err != nil {
			return err
		}
		_, err := s.Ledger.DebitTx(tx, ch.OpponentID, ch.Stake, models.ActivityH2HStake, ch.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ch.Status = models.ChallengeStatusActive
	ch.StartAt = now
	ch.EndAt = now.Add(window)

	s.mirrorAccept(ch)
	s.Notifier.Emit(EventH2HAccepted, map[string]interface{}{
		"challenge_id": ch.ID, "opponent_id": actorID,
	})
	return ch, nil
}

// DeclineChallenge rejects a pending challenge. No funds were moved.
func (s *ChallengeService) DeclineChallenge(challengeID, actorID string) (*models.Challenge, error) {
	ch, err := s.getChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	if ch.OpponentID != actorID {
		return nil, ErrNotAuthorized
	}
	if err := s.transitionPending(ch, models.ChallengeStatusDeclined, "decline"); err != nil {
		return nil, err
	}

	s.Notifier.Emit(EventH2HDeclined, map[string]interface{}{"challenge_id": ch.ID})
	return ch, nil
}

// CancelChallenge withdraws a pending challenge. Challenger or admin.
func (s *ChallengeService) CancelChallenge(challengeID, actorID, actorRole string) (*models.Challenge, error) {
	ch, err := s.getChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	if ch.ChallengerID != actorID && actorRole != "admin" {
		return nil, ErrNotAuthorized
	}
	if err := s.transitionPending(ch, models.ChallengeStatusCancelled, "cancel"); err != nil {
		return nil, err
	}

	s.Notifier.Emit(EventH2HCancelled, map[string]interface{}{"challenge_id": ch.ID})
	return ch, nil
}

func (s *ChallengeService) transitionPending(ch *models.Challenge, to models.ChallengeStatus, verb string) error {
	res := s.DB.Model(&models.Challenge{}).
		Where("id = ? AND status = ?", ch.ID, models.ChallengeStatusPending).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &InvalidTransitionError{Entity: "challenge", Current: string(ch.Status), Attempted: verb}
	}
	ch.Status = to
	return nil
}

// FinalizeChallenge settles an active challenge exactly once. The status
// flip is a compare-and-set on the active state inside the same
// transaction as the payout, so a concurrent finalize observes the
// terminal state and gets ErrAlreadySettled.
func (s *ChallengeService) FinalizeChallenge(challengeID string) (*models.Challenge, error) {
	now := s.Now()
	var out *models.Challenge
	var payoutAct *models.Activity
	var winnerPrize int64

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var ch models.Challenge
		if err := tx.First(&ch, "id = ?", challengeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if ch.Status == models.ChallengeStatusCompleted {
			return ErrAlreadySettled
		}
		if ch.Status != models.ChallengeStatusActive {
			return &InvalidTransitionError{Entity: "challenge", Current: string(ch.Status), Attempted: "finalize"}
		}

		challengerScore, err := s.scoreSide(tx, &ch, ch.ChallengerID)
		if err != nil {
			return err
		}
		opponentScore, err := s.scoreSide(tx, &ch, ch.OpponentID)
		if err != nil {
			return err
		}

		var winnerID *string
		if challengerScore > opponentScore {
			winnerID = &ch.ChallengerID
		} else if opponentScore > challengerScore {
			winnerID = &ch.OpponentID
		}

		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", challengeID, models.ChallengeStatusActive).
			Updates(map[string]interface{}{
				"status":           models.ChallengeStatusCompleted,
				"challenger_score": challengerScore,
				"opponent_score":   opponentScore,
				"winner_id":        winnerID,
				"completed_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race to a concurrent finalize
			return ErrAlreadySettled
		}

		if winnerID != nil {
			total := ch.Stake * 2
			fee := total * platformFeePct / 100
			winnerPrize = total - fee
			payoutAct, err = s.Ledger.CreditTx(tx, *winnerID, winnerPrize, models.ActivityH2HPayout, ch.ID)
			if err != nil {
				return err
			}
		} else {
			// tie: both sides get their exact stake back, no fee
			if _, err := s.Ledger.CreditTx(tx, ch.ChallengerID, ch.Stake, models.ActivityH2HRefund, ch.ID); err != nil {
				return err
			}
			if _, err := s.Ledger.CreditTx(tx, ch.OpponentID, ch.Stake, models.ActivityH2HRefund, ch.ID); err != nil {
				return err
			}
		}

		ch.Status = models.ChallengeStatusCompleted
		ch.ChallengerScore = challengerScore
		ch.OpponentScore = opponentScore
		ch.WinnerID = winnerID
		ch.CompletedAt = &now
		out = &ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.WinnerID != nil {
		s.Ledger.MirrorAward(*out.WinnerID, payoutAct, winnerPrize, "H2H challenge won")
	}
	s.mirrorFinalize(out)

	s.Notifier.Emit(EventH2HCompleted, map[string]interface{}{
		"challenge_id":     out.ID,
		"winner_id":        out.WinnerID,
		"challenger_score": out.ChallengerScore,
		"opponent_score":   out.OpponentScore,
		"prize":            winnerPrize,
	})
	return out, nil
}

// SettleExpired is the daily sweep: finalizes every active challenge
// whose window has closed. Challenges settled concurrently by a user or
// admin surface ErrAlreadySettled here and are skipped.
func (s *ChallengeService) SettleExpired() (int, error) {
	var expired []models.Challenge
	err := s.DB.Where("status = ? AND end_at < ?", models.ChallengeStatusActive, s.Now()).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, ch := range expired {
		if _, err := s.FinalizeChallenge(ch.ID); err != nil {
			if errors.Is(err, ErrAlreadySettled) {
				continue
			}
			log.Printf("[H2H] failed to settle expired challenge %s: %v", ch.ID, err)
			continue
		}
		settled++
	}
	return settled, nil
}

// scoreSide computes one account's score per the challenge metric over
// the challenge window.
func (s *ChallengeService) scoreSide(tx *gorm.DB, ch *models.Challenge, accountID string) (int64, error) {
	switch ch.Metric {
	case models.MetricStreak:
		var acct models.Account
		if err := tx.First(&acct, "id = ?", accountID).Error; err != nil {
			return 0, err
		}
		return int64(acct.CurrentStreak), nil
	case models.MetricCustom:
		if s.CustomScorer == nil {
			return 0, ErrUnsupportedMetric
		}
		return s.CustomScorer(tx, ch, accountID)
	}

	st, err := activityStats(tx, accountID, ch.StartAt, ch.EndAt)
	if err != nil {
		return 0, err
	}
	if ch.Metric == models.MetricTokenEarning {
		return st.TokensEarned, nil
	}
	return st.TasksCompleted, nil
}

// GetChallenge loads one challenge, restricted to its two sides and admins.
func (s *ChallengeService) GetChallenge(challengeID, actorID, actorRole string) (*models.Challenge, error) {
	ch, err := s.getChallenge(challengeID)
	if err != nil {
		return nil, err
	}
	if actorRole != "admin" && actorID != ch.ChallengerID && actorID != ch.OpponentID {
		return nil, ErrNotAuthorized
	}
	return ch, nil
}

// ListChallenges returns an account's challenges, optionally by status.
func (s *ChallengeService) ListChallenges(accountID string, status models.ChallengeStatus) ([]models.Challenge, error) {
	q := s.DB.Where("challenger_id = ? OR opponent_id = ?", accountID, accountID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var chs []models.Challenge
	err := q.Order("created_at DESC").Find(&chs).Error
	return chs, err
}

func (s *ChallengeService) getChallenge(challengeID string) (*models.Challenge, error) {
	var ch models.Challenge
	if err := s.DB.First(&ch, "id = ?", challengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// --- chain mirror dispatch ---

func (s *ChallengeService) mirrorCreate(ch *models.Challenge, challenger, opponent *models.Account) {
	if s.Mirror == nil || s.Mirror.Disabled() ||
		challenger.WalletAddress == nil || opponent.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ref, err := s.Mirror.CreateChallenge(ctx, *challenger.WalletAddress, *opponent.WalletAddress,
		ch.Stake, int64(ch.EndAt.Sub(ch.StartAt).Seconds()))
	if err != nil {
		log.Printf("[MIRROR] create challenge %s on chain failed: %v", ch.ID, err)
		return
	}
	if ref == "" {
		return
	}
	ch.MirrorChallengeID = &ref
	if err := s.DB.Model(&models.Challenge{}).Where("id = ?", ch.ID).
		Update("mirror_challenge_id", ref).Error; err != nil {
		log.Printf("[MIRROR] failed to store chain ref for challenge %s: %v", ch.ID, err)
	}
}

func (s *ChallengeService) mirrorAccept(ch *models.Challenge) {
	if s.Mirror == nil || s.Mirror.Disabled() || ch.MirrorChallengeID == nil {
		return
	}
	acct, err := s.Ledger.GetAccount(ch.OpponentID)
	if err != nil || acct.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.Mirror.AcceptChallenge(ctx, *ch.MirrorChallengeID, *acct.WalletAddress); err != nil {
		log.Printf("[MIRROR] accept challenge %s on chain failed: %v", ch.ID, err)
	}
}

func (s *ChallengeService) mirrorFinalize(ch *models.Challenge) {
	if s.Mirror == nil || s.Mirror.Disabled() || ch.MirrorChallengeID == nil || ch.WinnerID == nil {
		return
	}
	acct, err := s.Ledger.GetAccount(*ch.WinnerID)
	if err != nil || acct.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	txRef, err := s.Mirror.FinalizeChallenge(ctx, *ch.MirrorChallengeID, *acct.WalletAddress)
	if err != nil {
		log.Printf("[MIRROR] finalize challenge %s on chain failed: %v", ch.ID, err)
		return
	}
	if txRef != "" {
		if err := s.DB.Model(&models.Challenge{}).Where("id = ?", ch.ID).
			Update("mirror_tx_ref", txRef).Error; err != nil {
			log.Printf("[MIRROR] failed to store tx ref for challenge %s: %v", ch.ID, err)
		}
	}
}
