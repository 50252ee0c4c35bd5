package temporal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/reconcile"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// ErrTypeInvalidAddress is the application error type for addresses that can never reconcile.
const ErrTypeInvalidAddress = "InvalidAddress"

// PassRunner runs a reconciliation pass. *reconcile.Engine implements it.
type PassRunner interface {
	Run(ctx context.Context, address string) (*reconcile.PassResult, error)
}

// RunPassInput is the input of RunReconciliationPass.
type RunPassInput struct {
	Address string `json:"address"`
}

// PassSummary is the serialisable outcome of a pass.
type PassSummary struct {
	PassID        string `json:"pass_id"`
	Listed        int    `json:"listed"`
	Fetched       int    `json:"fetched"`
	Total         int    `json:"total"`
	StatusChanges int    `json:"status_changes"`
	PatchErrors   int    `json:"patch_errors"`
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	runner PassRunner
	logger *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
func NewActivities(runner PassRunner, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{runner: runner, logger: logger}
}

// RunReconciliationPass runs one pass for the input address.
func (a *Activities) RunReconciliationPass(ctx context.Context, input RunPassInput) (*PassSummary, error) {
	a.logger.DebugContext(ctx, "running reconciliation pass", "address", input.Address)

	res, err := a.runner.Run(ctx, input.Address)
	if err != nil {
		if errors.Is(err, activity.ErrInvalidAddress) {
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidAddress, err)
		}
		a.logger.ErrorContext(ctx, "reconciliation pass failed", "address", input.Address, "error", err)
		return nil, err
	}

	return &PassSummary{
		PassID:        res.PassID,
		Listed:        res.Listed,
		Fetched:       res.Fetched,
		Total:         res.Total,
		StatusChanges: len(res.Changes),
		PatchErrors:   res.PatchErrors,
	}, nil
}
