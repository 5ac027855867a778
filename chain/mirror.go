// chain/mirror.go
package chain

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the chain service cannot be reached or
// rejects a call. Callers log it and queue a retry; it never fails the
// local transaction that triggered the mirror call.
var ErrUnavailable = errors.New("chain mirror unavailable")

// Mirror replicates ledger events to the external blockchain service.
// All calls are best-effort: the local ledger is the source of truth.
//
// Disabled() distinguishes "mirror not configured" from "mirror failed":
// a disabled mirror is skipped silently and produces no tx refs.
type Mirror interface {
	Disabled() bool

	AwardTokens(ctx context.Context, wallet string, amount int64, reason string) (txRef string, err error)
	SpendTokens(ctx context.Context, wallet string, amount int64, purpose string) (txRef string, err error)
	BalanceOf(ctx context.Context, wallet string) (int64, error)

	CreateTask(ctx context.Context, wallet, title string, reward int64) (taskRef string, err error)
	CompleteTask(ctx context.Context, taskRef, wallet string) (txRef string, err error)

	CreateChallenge(ctx context.Context, challengerWallet, opponentWallet string, stake int64, durationSecs int64) (challengeRef string, err error)
	AcceptChallenge(ctx context.Context, challengeRef, opponentWallet string) (txRef string, err error)
	FinalizeChallenge(ctx context.Context, challengeRef, winnerWallet string) (txRef string, err error)

	CreateLeague(ctx context.Context, name string, tier, maxMembers int, durationSecs int64) (leagueRef string, err error)
	JoinLeague(ctx context.Context, leagueRef, wallet string) (txRef string, err error)

	IssueTicket(ctx context.Context, wallet, reason string) (txRef string, err error)
	DrawLottery(ctx context.Context, winnerWallet string) (txRef string, err error)
}

// disabledMirror is used when no chain endpoint is configured. Every call
// reports disabled; no fake tx refs are produced.
type disabledMirror struct{}

// NewDisabled returns a Mirror that skips every call.
func NewDisabled() Mirror { return disabledMirror{} }

func (disabledMirror) Disabled() bool { return true }

func (disabledMirror) AwardTokens(context.Context, string, int64, string) (string, error) {
	return "", nil
}
func (disabledMirror) SpendTokens(context.Context, string, int64, string) (string, error) {
	return "", nil
}
func (disabledMirror) BalanceOf(context.Context, string) (int64, error) { return 0, nil }
func (disabledMirror) CreateTask(context.Context, string, string, int64) (string, error) {
	return "", nil
}
func (disabledMirror) CompleteTask(context.Context, string, string) (string, error) {
	return "", nil
}
func (disabledMirror) CreateChallenge(context.Context, string, string, int64, int64) (string, error) {
	return "", nil
}
func (disabledMirror) AcceptChallenge(context.Context, string, string) (string, error) {
	return "", nil
}
func (disabledMirror) FinalizeChallenge(context.Context, string, string) (string, error) {
	return "", nil
}
func (disabledMirror) CreateLeague(context.Context, string, int, int, int64) (string, error) {
	return "", nil
}
func (disabledMirror) JoinLeague(context.Context, string, string) (string, error) {
	return "", nil
}
func (disabledMirror) IssueTicket(context.Context, string, string) (string, error) {
	return "", nil
}
func (disabledMirror) DrawLottery(context.Context, string) (string, error) {
	return "", nil
}
