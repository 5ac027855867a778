// services/task_service.go
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

// DefaultTaskReward is used when a task is created without an explicit
// token reward.
const DefaultTaskReward = 10

// TaskService owns the task lifecycle: pending -> in_progress ->
// completed -> verified, with cancel legal before completion. The token
// reward is paid exactly once, at completion.
type TaskService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Lottery  *LotteryService
	Mirror   chain.Mirror
	Notifier Notifier
	Now      func() time.Time
}

func NewTaskService(db *gorm.DB, ledger *LedgerService, lottery *LotteryService, mirror chain.Mirror, notifier Notifier) *TaskService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &TaskService{DB: db, Ledger: ledger, Lottery: lottery, Mirror: mirror, Notifier: notifier, Now: time.Now}
}

// CreateTaskInput carries the requester-supplied fields.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    models.TaskPriority
	AssigneeID  string
	TokenReward int64
	DueDate     *time.Time
}

// CreateTask records a new pending task. Requires project_lead or admin.
func (s *TaskService) CreateTask(actorID, actorRole string, in CreateTaskInput) (*models.Task, error) {
	if actorRole != "project_lead" && actorRole != "admin" {
		return nil, ErrNotAuthorized
	}
	if in.Title == "" {
		return nil, errors.New("title is required")
	}
	if in.TokenReward <= 0 {
		in.TokenReward = DefaultTaskReward
	}
	if in.Priority == "" {
		in.Priority = models.TaskPriorityMedium
	}

	assignee, err := s.Ledger.GetAccount(in.AssigneeID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      models.TaskStatusPending,
		AssigneeID:  in.AssigneeID,
		CreatedByID: actorID,
		TokenReward: in.TokenReward,
		DueDate:     in.DueDate,
	}
	if err := s.DB.Create(task).Error; err != nil {
		return nil, err
	}

	s.mirrorCreate(task, assignee)
	s.Notifier.Emit(EventTaskAssigned, map[string]interface{}{
		"task_id": task.ID, "assignee_id": task.AssigneeID, "reward": task.TokenReward,
	})
	return task, nil
}

// StartTask moves a pending task to in_progress. Assignee only.
func (s *TaskService) StartTask(taskID, actorID string) (*models.Task, error) {
	task, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != actorID {
		return nil, ErrNotAuthorized
	}

	res := s.DB.Model(&models.Task{}).
		Where("id = ? AND status = ?", taskID, models.TaskStatusPending).
		Update("status", models.TaskStatusInProgress)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidTransitionError{Entity: "task", Current: string(task.Status), Attempted: "start"}
	}

	task.Status = models.TaskStatusInProgress
	return task, nil
}

// CompleteTask settles a task: the status flip, the reward credit, the
// streak update and the lottery ticket all commit in one transaction.
func (s *TaskService) CompleteTask(taskID, actorID string) (*models.Task, error) {
	task, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}
	if task.AssigneeID != actorID {
		return nil, ErrNotAuthorized
	}

	now := s.Now()
	var rewardAct *models.Activity
	var streak *StreakResult

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, models.TaskStatusInProgress).
			Updates(map[string]interface{}{
				"status":       models.TaskStatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &InvalidTransitionError{Entity: "task", Current: string(task.Status), Attempted: "complete"}
		}

		rewardAct, err = s.Ledger.CreditTx(tx, task.AssigneeID, task.TokenReward,
			models.ActivityTaskCompleted, task.Title)
		if err != nil {
			return err
		}

		streak, err = s.updateStreakTx(tx, task.AssigneeID)
		if err != nil {
			return err
		}

		return s.Lottery.IssueTicketTx(tx, task.AssigneeID, models.TicketFromTaskCompletion)
	})
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now

	s.Ledger.MirrorAward(task.AssigneeID, rewardAct, task.TokenReward, "Task completion: "+task.Title)
	if streak.BonusPaid > 0 {
		s.Ledger.MirrorAward(task.AssigneeID, streak.BonusActivity, streak.BonusPaid,
			"Streak milestone: "+string(streak.Tier))
		s.Notifier.Emit(EventStreakMilestone, map[string]interface{}{
			"account_id": task.AssigneeID, "streak": streak.Streak,
			"tier": streak.Tier, "bonus": streak.BonusPaid,
		})
	}
	s.mirrorComplete(task)

	s.Notifier.Emit(EventTaskCompleted, map[string]interface{}{
		"task_id": task.ID, "account_id": task.AssigneeID, "reward": task.TokenReward,
	})
	return task, nil
}

// VerifyTask records the reviewer on a completed task. Verification is an
// audit step, not a payment gate: the reward was paid at completion.
func (s *TaskService) VerifyTask(taskID, actorID, actorRole string) (*models.Task, error) {
	if actorRole != "reviewer" && actorRole != "admin" {
		return nil, ErrNotAuthorized
	}

	task, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}

	res := s.DB.Model(&models.Task{}).
		Where("id = ? AND status = ?", taskID, models.TaskStatusCompleted).
		Updates(map[string]interface{}{
			"status":         models.TaskStatusVerified,
			"reviewed_by_id": actorID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidTransitionError{Entity: "task", Current: string(task.Status), Attempted: "verify"}
	}

	task.Status = models.TaskStatusVerified
	task.ReviewedByID = &actorID

	s.Notifier.Emit(EventTaskVerified, map[string]interface{}{
		"task_id": task.ID, "verified_by": actorID,
	})
	return task, nil
}

// CancelTask abandons a task that has not been completed. No refund is
// needed because no stake was ever held.
func (s *TaskService) CancelTask(taskID, actorID, actorRole string) (*models.Task, error) {
	task, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}
	if actorID != task.AssigneeID && actorID != task.CreatedByID && actorRole != "admin" {
		return nil, ErrNotAuthorized
	}

	res := s.DB.Model(&models.Task{}).
		Where("id = ? AND status IN ?", taskID,
			[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress}).
		Update("status", models.TaskStatusCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidTransitionError{Entity: "task", Current: string(task.Status), Attempted: "cancel"}
	}

	task.Status = models.TaskStatusCancelled
	return task, nil
}

// GetTask loads one task, restricted to participants and admins.
func (s *TaskService) GetTask(taskID, actorID, actorRole string) (*models.Task, error) {
	task, err := s.getTask(taskID)
	if err != nil {
		return nil, err
	}
	if actorRole != "admin" && actorID != task.AssigneeID && actorID != task.CreatedByID {
		return nil, ErrNotAuthorized
	}
	return task, nil
}

// ListTasks returns an account's tasks, optionally filtered by status.
func (s *TaskService) ListTasks(accountID string, status models.TaskStatus) ([]models.Task, error) {
	q := s.DB.Where("assignee_id = ? OR created_by_id = ?", accountID, accountID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tasks []models.Task
	err := q.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

func (s *TaskService) getTask(taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.DB.First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) mirrorCreate(task *models.Task, assignee *models.Account) {
	if s.Mirror == nil || s.Mirror.Disabled() || assignee.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ref, err := s.Mirror.CreateTask(ctx, *assignee.WalletAddress, task.Title, task.TokenReward)
	if err != nil {
		log.Printf("[MIRROR] create task %s on chain failed: %v", task.ID, err)
		return
	}
	if ref == "" {
		return
	}
	task.MirrorTaskID = &ref
	if err := s.DB.Model(&models.Task{}).Where("id = ?", task.ID).
		Update("mirror_task_id", ref).Error; err != nil {
		log.Printf("[MIRROR] failed to store chain ref for task %s: %v", task.ID, err)
	}
}

func (s *TaskService) mirrorComplete(task *models.Task) {
	if s.Mirror == nil || s.Mirror.Disabled() || task.MirrorTaskID == nil {
		return
	}

	acct, err := s.Ledger.GetAccount(task.AssigneeID)
	if err != nil || acct.WalletAddress == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	txRef, err := s.Mirror.CompleteTask(ctx, *task.MirrorTaskID, *acct.WalletAddress)
	if err != nil {
		log.Printf("[MIRROR] complete task %s on chain failed: %v", task.ID, err)
		return
	}
	if txRef != "" {
		if err := s.DB.Model(&models.Task{}).Where("id = ?", task.ID).
			Update("mirror_tx_ref", txRef).Error; err != nil {
			log.Printf("[MIRROR] failed to store tx ref for task %s: %v", task.ID, err)
		}
	}
}
