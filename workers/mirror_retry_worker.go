// workers/mirror_retry_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"block-engage-system/chain"
	"block-engage-system/models"

	"gorm.io/gorm"
)

// MirrorRetryWorker drains queued chain-mirror jobs. Award and spend calls
// that failed inline land in the mirror_jobs table; this worker replays them
// until they succeed or run out of attempts. The local ledger stays
// authoritative regardless of the outcome.
type MirrorRetryWorker struct {
	db       *gorm.DB
	mirror   chain.Mirror
	interval time.Duration
}

func NewMirrorRetryWorker(db *gorm.DB, mirror chain.Mirror) *MirrorRetryWorker {
	return &MirrorRetryWorker{
		db:       db,
		mirror:   mirror,
		interval: 30 * time.Second,
	}
}

func (w *MirrorRetryWorker) Start(ctx context.Context) {
	if w.mirror.Disabled() {
		log.Println("Mirror retry worker not started: chain mirror disabled")
		return
	}
	log.Println("🔁 Starting Mirror Retry Worker…")
	go w.run(ctx)
}

func (w *MirrorRetryWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				log.Printf("❌ Mirror retry pass failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Mirror Retry Worker stopped")
			return
		}
	}
}

// drain replays every pending job once, oldest first.
func (w *MirrorRetryWorker) drain(ctx context.Context) error {
	var jobs []models.MirrorJob
	err := w.db.Where("status = ?", models.MirrorJobPending).
		Order("created_at ASC").
		Limit(50).
		Find(&jobs).Error
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.attempt(ctx, job)
	}
	return nil
}

func (w *MirrorRetryWorker) attempt(ctx context.Context, job models.MirrorJob) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var txRef string
	var err error
	switch job.Op {
	case "award":
		txRef, err = w.mirror.AwardTokens(callCtx, job.WalletAddress, job.Amount, job.Reason)
	case "spend":
		txRef, err = w.mirror.SpendTokens(callCtx, job.WalletAddress, job.Amount, job.Reason)
	default:
		log.Printf("⚠️ Unknown mirror op %q on job %s, marking failed", job.Op, job.ID)
		w.db.Model(&models.MirrorJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":     models.MirrorJobFailed,
			"last_error": "unknown op",
		})
		return
	}

	attempts := job.Attempts + 1
	if err != nil {
		status := models.MirrorJobPending
		if attempts >= models.MaxMirrorAttempts {
			status = models.MirrorJobFailed
			log.Printf("❌ Mirror job %s (%s %d to %s) gave up after %d attempts: %v",
				job.ID, job.Op, job.Amount, job.WalletAddress, attempts, err)
		}
		w.db.Model(&models.MirrorJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":     status,
			"attempts":   attempts,
			"last_error": err.Error(),
		})
		return
	}

	w.db.Model(&models.MirrorJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":     models.MirrorJobDone,
		"attempts":   attempts,
		"last_error": "",
	})
	if job.ActivityID != nil && txRef != "" {
		w.db.Model(&models.Activity{}).Where("id = ?", *job.ActivityID).
			Update("mirror_tx_ref", txRef)
	}
	log.Printf("✅ Mirror job %s replayed (%s %d, tx=%s)", job.ID, job.Op, job.Amount, txRef)
}
