// services/lottery_service.go
package services

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"block-engage-system/chain"
	"block-engage-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// TicketPrice in tokens for purchased tickets. Earned tickets are free.
	TicketPrice = 5
	// MaxTicketsPerRound caps one account's tickets in a single round.
	MaxTicketsPerRound = 10
	// LotteryPrize is credited to the drawn winner.
	LotteryPrize = 100
	// RoundDuration is the window of each round.
	RoundDuration = 7 * 24 * time.Hour
)

// LotteryService owns the round lifecycle. Exactly one round is active
// at any time: Draw closes the current round and creates its successor
// inside the same transaction.
type LotteryService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Mirror   chain.Mirror
	Notifier Notifier
	Now      func() time.Time
	RandIntn func(n int) int // winner selection, seedable in tests
}

func NewLotteryService(db *gorm.DB, ledger *LedgerService, mirror chain.Mirror, notifier Notifier) *LotteryService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &LotteryService{
		DB: db, Ledger: ledger, Mirror: mirror, Notifier: notifier,
		Now: time.Now, RandIntn: rand.Intn,
	}
}

// EnsureActiveRound creates the first round if none is active. Called at
// boot; after that Draw keeps the invariant.
func (s *LotteryService) EnsureActiveRound() (*models.LotteryRound, error) {
	var round models.LotteryRound
	err := s.DB.Where("is_active = ?", true).Order("created_at DESC").First(&round).Error
	if err == nil {
		return &round, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	round = s.newRound()
	if err := s.DB.Create(&round).Error; err != nil {
		return nil, err
	}
	log.Printf("[LOTTERY] opened first round %s", round.Name)
	return &round, nil
}

func (s *LotteryService) newRound() models.LotteryRound {
	now := s.Now()
	return models.LotteryRound{
		ID:       uuid.NewString(),
		Name:     "Weekly Draw " + now.UTC().Format("2006-01-02"),
		StartAt:  now,
		EndAt:    now.Add(RoundDuration),
		IsActive: true,
	}
}

// CurrentRound returns the single active round.
func (s *LotteryService) CurrentRound() (*models.LotteryRound, error) {
	var round models.LotteryRound
	err := s.DB.Where("is_active = ?", true).Order("created_at DESC").First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveRound
		}
		return nil, err
	}
	return &round, nil
}

// IssueTicketTx inserts one earned ticket into the active round on the
// caller's transaction. No token movement. If no round is open (only
// possible before the first boot-time round) the issuance is skipped
// rather than failing the earning operation.
func (s *LotteryService) IssueTicketTx(tx *gorm.DB, accountID, reason string) error {
	var round models.LotteryRound
	err := tx.Where("is_active = ?", true).Order("created_at DESC").First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[LOTTERY] no active round, skipping ticket for account %s", accountID)
			return nil
		}
		return err
	}

	ticket := models.LotteryTicket{
		ID:           uuid.NewString(),
		RoundID:      round.ID,
		AccountID:    accountID,
		TicketNumber: "T-" + uuid.NewString(),
		EarnedFrom:   reason,
	}
	return tx.Create(&ticket).Error
}

// IssueTicket is the admin-facing grant of a single earned ticket.
func (s *LotteryService) IssueTicket(accountID, reason string) error {
	acct, err := s.Ledger.GetAccount(accountID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = models.TicketFromAdmin
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		return s.IssueTicketTx(tx, accountID, reason)
	})
	if err != nil {
		return err
	}

	s.mirrorIssueTicket(acct, reason)
	s.Notifier.Emit(EventLotteryTicket, map[string]interface{}{
		"account_id": accountID, "reason": reason,
	})
	return nil
}

// BuyTickets debits quantity x TicketPrice and inserts the tickets, all
// in one transaction. The per-round cap counts every ticket the account
// already holds in the round, earned or bought.
func (s *LotteryService) BuyTickets(accountID string, quantity int) ([]models.LotteryTicket, error) {
	if quantity < 1 || quantity > MaxTicketsPerRound {
		return nil, &CapacityError{Resource: "lottery tickets per purchase", Limit: MaxTicketsPerRound}
	}

	cost := int64(quantity) * TicketPrice
	var tickets []models.LotteryTicket
	var costAct *models.Activity

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.LotteryRound
		if err := tx.Where("is_active = ?", true).Order("created_at DESC").First(&round).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoActiveRound
			}
			return err
		}

		var held int64
		if err := tx.Model(&models.LotteryTicket{}).
			Where("round_id = ? AND account_id = ?", round.ID, accountID).
			Count(&held).Error; err != nil {
			return err
		}
		if int(held)+quantity > MaxTicketsPerRound {
			return &CapacityError{Resource: "lottery tickets per round", Limit: MaxTicketsPerRound}
		}

		act, err := s.Ledger.DebitTx(tx, accountID, cost, models.ActivityLotteryPurchase, round.Name)
		if err != nil {
			return err
		}
		costAct = act

		for i := 0; i < quantity; i++ {
			t := models.LotteryTicket{
				ID:           uuid.NewString(),
				RoundID:      round.ID,
				AccountID:    accountID,
				TicketNumber: "T-" + uuid.NewString(),
				EarnedFrom:   models.TicketFromPurchase,
			}
			if err := tx.Create(&t).Error; err != nil {
				return err
			}
			tickets = append(tickets, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Ledger.MirrorSpend(accountID, costAct, cost, "Lottery tickets")
	return tickets, nil
}

// Draw closes the active round: one unused ticket is selected uniformly
// at random, its owner gets the prize, and the successor round is created
// in the same transaction so exactly one round is always active. A
// concurrent draw loses the compare-and-set and gets ErrAlreadySettled.
func (s *LotteryService) Draw() (*models.LotteryRound, error) {
	now := s.Now()
	var closed models.LotteryRound
	var winnerTicket models.LotteryTicket
	var prizeAct *models.Activity

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.LotteryRound
		if err := tx.Where("is_active = ?", true).Order("created_at DESC").First(&round).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoActiveRound
			}
			return err
		}
		if now.Before(round.EndAt) {
			return ErrRoundNotEnded
		}

		var tickets []models.LotteryTicket
		if err := tx.Where("round_id = ? AND is_used = ?", round.ID, false).
			Order("created_at ASC").Find(&tickets).Error; err != nil {
			return err
		}
		if len(tickets) == 0 {
			return ErrNoTickets
		}

		winnerTicket = tickets[s.RandIntn(len(tickets))]

		res := tx.Model(&models.LotteryRound{}).
			Where("id = ? AND is_active = ?", round.ID, true).
			Updates(map[string]interface{}{
				"is_active": false,
				"winner_id": winnerTicket.AccountID,
				"drawn_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySettled
		}

		if err := tx.Model(&models.LotteryTicket{}).
			Where("id = ?", winnerTicket.ID).
			Update("is_used", true).Error; err != nil {
			return err
		}

		act, err := s.Ledger.CreditTx(tx, winnerTicket.AccountID, LotteryPrize,
			models.ActivityLotteryPrize, round.Name)
		if err != nil {
			return err
		}
		prizeAct = act

		next := s.newRound()
		if err := tx.Create(&next).Error; err != nil {
			return err
		}

		closed = round
		closed.IsActive = false
		closed.WinnerID = &winnerTicket.AccountID
		closed.DrawnAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Ledger.MirrorAward(winnerTicket.AccountID, prizeAct, LotteryPrize, "Lottery winner")
	s.mirrorDraw(&closed, winnerTicket.AccountID)

	s.Notifier.Emit(EventLotteryWinner, map[string]interface{}{
		"round_id":      closed.ID,
		"winner_id":     winnerTicket.AccountID,
		"ticket_number": winnerTicket.TicketNumber,
		"prize":         int64(LotteryPrize),
	})
	return &closed, nil
}

// AutoDraw is the scheduler entry: draws only when the active round has
// ended. An empty round is left open until it has tickets.
func (s *LotteryService) AutoDraw() error {
	_, err := s.Draw()
	if err != nil {
		switch {
		case errors.Is(err, ErrRoundNotEnded), errors.Is(err, ErrNoActiveRound):
			return nil
		case errors.Is(err, ErrNoTickets):
			log.Println("[LOTTERY] round ended with no tickets, holding it open")
			return nil
		}
		return err
	}
	return nil
}

// History returns closed rounds, most recent first.
func (s *LotteryService) History(limit int) ([]models.LotteryRound, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rounds []models.LotteryRound
	err := s.DB.Where("is_active = ?", false).
		Order("drawn_at DESC").Limit(limit).Find(&rounds).Error
	return rounds, err
}

// TicketsFor returns an account's tickets in one round.
func (s *LotteryService) TicketsFor(roundID, accountID string) ([]models.LotteryTicket, error) {
	var tickets []models.LotteryTicket
	err := s.DB.Where("round_id = ? AND account_id = ?", roundID, accountID).
		Order("created_at ASC").Find(&tickets).Error
	return tickets, err
}

func (s *LotteryService) mirrorIssueTicket(acct *models.Account, reason string) {
	if s.Mirror == nil || s.Mirror.Disabled() || acct.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.Mirror.IssueTicket(ctx, *acct.WalletAddress, reason); err != nil {
		log.Printf("[MIRROR] issue ticket on chain failed: %v", err)
	}
}

func (s *LotteryService) mirrorDraw(round *models.LotteryRound, winnerID string) {
	if s.Mirror == nil || s.Mirror.Disabled() {
		return
	}
	acct, err := s.Ledger.GetAccount(winnerID)
	if err != nil || acct.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	txRef, err := s.Mirror.DrawLottery(ctx, *acct.WalletAddress)
	if err != nil {
		log.Printf("[MIRROR] draw lottery on chain failed: %v", err)
		return
	}
	if txRef != "" {
		if err := s.DB.Model(&models.LotteryRound{}).Where("id = ?", round.ID).
			Update("mirror_tx_ref", txRef).Error; err != nil {
			log.Printf("[MIRROR] failed to store tx ref for round %s: %v", round.ID, err)
		}
	}
}
