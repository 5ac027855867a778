// services/ledger_service.go
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

// DefaultRecognitionAmount is transferred when one account recognizes
// another without naming an amount.
const DefaultRecognitionAmount = 5

// LedgerService is the only mutator of account balances. Every balance
// change happens through CreditTx/DebitTx/TransferTx inside the storage
// transaction of the entity mutation that triggered it, and appends one
// Activity row per affected account.
//
// Chain mirroring runs after the local commit: one short-timeout attempt,
// then a MirrorJob for the retry worker. Mirror failure never propagates.
type LedgerService struct {
	DB       *gorm.DB
	Mirror   chain.Mirror
	Notifier Notifier
	Now      func() time.Time
}

func NewLedgerService(db *gorm.DB, mirror chain.Mirror, notifier Notifier) *LedgerService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &LedgerService{DB: db, Mirror: mirror, Notifier: notifier, Now: time.Now}
}

// CreditTx adds amount to the account balance and appends the activity
// row, all on the caller's transaction.
func (s *LedgerService) CreditTx(tx *gorm.DB, accountID string, amount int64, reason, detail string) (*models.Activity, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res := tx.Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.appendActivityTx(tx, accountID, amount, reason, detail)
}

// DebitTx subtracts amount from the account balance. The non-negative
// invariant is enforced in the UPDATE predicate so concurrent debits
// cannot overdraw.
func (s *LedgerService) DebitTx(tx *gorm.DB, accountID string, amount int64, reason, detail string) (*models.Activity, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	res := tx.Model(&models.Account{}).
		Where("id = ? AND balance >= ?", accountID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var acct models.Account
		if err := tx.First(&acct, "id = ?", accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return nil, &InsufficientFundsError{AccountID: accountID, Required: amount, Available: acct.Balance}
	}

	return s.appendActivityTx(tx, accountID, -amount, reason, detail)
}

// TransferTx moves amount between two accounts atomically, appending one
// activity row per side.
func (s *LedgerService) TransferTx(tx *gorm.DB, fromID, toID string, amount int64, reasonOut, reasonIn, detail string) error {
	if _, err := s.DebitTx(tx, fromID, amount, reasonOut, detail); err != nil {
		return err
	}
	_, err := s.CreditTx(tx, toID, amount, reasonIn, detail)
	return err
}

func (s *LedgerService) appendActivityTx(tx *gorm.DB, accountID string, delta int64, reason, detail string) (*models.Activity, error) {
	act := &models.Activity{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Delta:      delta,
		Reason:     reason,
		Detail:     detail,
		OccurredAt: s.Now(),
	}
	if err := tx.Create(act).Error; err != nil {
		return nil, err
	}
	return act, nil
}

// Credit is the standalone form: own transaction, then mirror dispatch.
func (s *LedgerService) Credit(accountID string, amount int64, reason, detail string) (*models.Activity, error) {
	var act *models.Activity
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		act, txErr = s.CreditTx(tx, accountID, amount, reason, detail)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.MirrorAward(accountID, act, amount, reason)
	s.Notifier.Emit(EventTokensAwarded, map[string]interface{}{
		"account_id": accountID, "amount": amount, "reason": reason,
	})
	return act, nil
}

// Debit is the standalone form of DebitTx.
func (s *LedgerService) Debit(accountID string, amount int64, reason, detail string) (*models.Activity, error) {
	var act *models.Activity
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		act, txErr = s.DebitTx(tx, accountID, amount, reason, detail)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.MirrorSpend(accountID, act, amount, reason)
	return act, nil
}

// GiftTokens transfers tokens between two accounts at the sender's
// initiative.
func (s *LedgerService) GiftTokens(senderID, recipientID string, amount int64, message string) error {
	if senderID == recipientID {
		return ErrSelfTarget
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Account{}, "id = ?", recipientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return s.TransferTx(tx, senderID, recipientID, amount,
			models.ActivityTokensGifted, models.ActivityTokensReceived, message)
	})
	if err != nil {
		return err
	}

	s.mirrorTransfer(senderID, recipientID, amount, "Token gift")
	return nil
}

// RecognizePeer transfers recognition tokens and records the given/received
// activity pair that feeds weekly scoring.
func (s *LedgerService) RecognizePeer(giverID, recipientID string, amount int64, message string) error {
	if giverID == recipientID {
		return ErrSelfTarget
	}
	if amount <= 0 {
		amount = DefaultRecognitionAmount
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Account{}, "id = ?", recipientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return s.TransferTx(tx, giverID, recipientID, amount,
			models.ActivityRecognitionGiven, models.ActivityRecognitionReceived, message)
	})
	if err != nil {
		return err
	}

	s.mirrorTransfer(giverID, recipientID, amount, "Peer recognition")
	s.Notifier.Emit(EventPeerRecognition, map[string]interface{}{
		"from": giverID, "to": recipientID, "amount": amount,
	})
	return nil
}

// GetAccount loads one account by id.
func (s *LedgerService) GetAccount(accountID string) (*models.Account, error) {
	var acct models.Account
	if err := s.DB.First(&acct, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// GetActivities returns the most recent activity rows for an account.
func (s *LedgerService) GetActivities(accountID string, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var acts []models.Activity
	err := s.DB.Where("account_id = ?", accountID).
		Order("occurred_at DESC").Limit(limit).Find(&acts).Error
	return acts, err
}

// Leaderboard returns the top accounts by balance.
func (s *LedgerService) Leaderboard(limit int) ([]models.Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var accounts []models.Account
	err := s.DB.Order("balance DESC, username ASC").Limit(limit).Find(&accounts).Error
	return accounts, err
}

// --- chain mirror dispatch (post-commit, best effort) ---

// MirrorAward attempts one award call against the chain mirror and queues
// a retry job on failure. Accounts without a wallet are skipped.
func (s *LedgerService) MirrorAward(accountID string, act *models.Activity, amount int64, reason string) {
	s.dispatchMirror("award", accountID, act, amount, reason)
}

// MirrorSpend is the spend-side counterpart of MirrorAward.
func (s *LedgerService) MirrorSpend(accountID string, act *models.Activity, amount int64, reason string) {
	s.dispatchMirror("spend", accountID, act, amount, reason)
}

func (s *LedgerService) mirrorTransfer(fromID, toID string, amount int64, reason string) {
	s.dispatchMirror("spend", fromID, nil, amount, reason)
	s.dispatchMirror("award", toID, nil, amount, reason)
}

func (s *LedgerService) dispatchMirror(op, accountID string, act *models.Activity, amount int64, reason string) {
	if s.Mirror == nil || s.Mirror.Disabled() {
		return
	}

	var acct models.Account
	if err := s.DB.First(&acct, "id = ?", accountID).Error; err != nil {
		log.Printf("[MIRROR] account %s lookup failed: %v", accountID, err)
		return
	}
	if acct.WalletAddress == nil || *acct.WalletAddress == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var txRef string
	var err error
	switch op {
	case "spend":
		txRef, err = s.Mirror.SpendTokens(ctx, *acct.WalletAddress, amount, reason)
	default:
		txRef, err = s.Mirror.AwardTokens(ctx, *acct.WalletAddress, amount, reason)
	}
	if err != nil {
		log.Printf("[MIRROR] %s of %d for account %s failed: %v", op, amount, accountID, err)
		s.enqueueMirrorJob(op, *acct.WalletAddress, amount, reason, act, err)
		return
	}

	if act != nil && txRef != "" {
		if err := s.DB.Model(&models.Activity{}).
			Where("id = ?", act.ID).
			Update("mirror_tx_ref", txRef).Error; err != nil {
			log.Printf("[MIRROR] failed to record tx ref on activity %s: %v", act.ID, err)
		}
	}
}

func (s *LedgerService) enqueueMirrorJob(op, wallet string, amount int64, reason string, act *models.Activity, cause error) {
	job := &models.MirrorJob{
		ID:            uuid.NewString(),
		Op:            op,
		WalletAddress: wallet,
		Amount:        amount,
		Reason:        reason,
		Status:        models.MirrorJobPending,
		Attempts:      1,
		LastError:     cause.Error(),
	}
	if act != nil {
		job.ActivityID = &act.ID
	}
	if err := s.DB.Create(job).Error; err != nil {
		log.Printf("[MIRROR] failed to enqueue retry job: %v", err)
	}
}
