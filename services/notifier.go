// services/notifier.go
package services

import (
	"log"
)

// Event names emitted by the settlement core. Fan-out and delivery belong
// to the notification collaborator, not this service.
const (
	EventTaskAssigned        = "task-assigned"
	EventTaskCompleted       = "task-completed"
	EventTaskVerified        = "task-verified"
	EventTokensAwarded       = "tokens-awarded"
	EventStreakMilestone     = "streak-milestone"
	EventPeerRecognition     = "peer-recognition"
	EventH2HChallengeCreated = "h2h-challenge-received"
	EventH2HAccepted         = "h2h-accepted"
	EventH2HDeclined         = "h2h-declined"
	EventH2HCancelled        = "h2h-cancelled"
	EventH2HCompleted        = "h2h-completed"
	EventLeagueScoresUpdated = "league-scores-updated"
	EventLeagueSeasonEnded   = "league-season-ended"
	EventLotteryTicket       = "lottery-ticket"
	EventLotteryWinner       = "lottery-winner"
)

// Notifier receives semantic events after local settlement commits.
type Notifier interface {
	Emit(event string, payload map[string]interface{})
}

// LogNotifier is the default sink when no event bus is wired.
type LogNotifier struct{}

func NewLogNotifier() LogNotifier { return LogNotifier{} }

func (LogNotifier) Emit(event string, payload map[string]interface{}) {
	log.Printf("[EVENT] %s %v", event, payload)
}
