package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// ReconcileAddressWorkflowName is the registered name schedules start.
const ReconcileAddressWorkflowName = "ReconcileAddressWorkflow"

// ReconcileAddressInput identifies the address a scheduled pass runs for.
type ReconcileAddressInput struct {
	Address string `json:"address"`
}

// ReconcileAddressResult summarises the pass the workflow ran.
type ReconcileAddressResult struct {
	Address       string    `json:"address"`
	PassID        string    `json:"pass_id"`
	Listed        int       `json:"listed"`
	Fetched       int       `json:"fetched"`
	Total         int       `json:"total"`
	StatusChanges int       `json:"status_changes"`
	PatchErrors   int       `json:"patch_errors"`
	StartedAt     time.Time `json:"started_at"`
}

// ReconcileAddressWorkflow runs one reconciliation pass for an address. It is
// started by the address's Temporal schedule. Failed passes are retried by
// Temporal; an invalid address is not.
func ReconcileAddressWorkflow(ctx workflow.Context, input ReconcileAddressInput) (*ReconcileAddressResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ReconcileAddressWorkflow started", "address", input.Address)

	result := &ReconcileAddressResult{
		Address:   input.Address,
		StartedAt: workflow.Now(ctx),
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidAddress},
		},
	})

	var pass PassSummary
	err := workflow.ExecuteActivity(ctx, a.RunReconciliationPass, RunPassInput(input)).Get(ctx, &pass)
	if err != nil {
		logger.Error("reconciliation pass failed", "address", input.Address, "error", err)
		return result, err
	}

	result.PassID = pass.PassID
	result.Listed = pass.Listed
	result.Fetched = pass.Fetched
	result.Total = pass.Total
	result.StatusChanges = pass.StatusChanges
	result.PatchErrors = pass.PatchErrors

	logger.Info("ReconcileAddressWorkflow completed",
		"address", input.Address,
		"pass_id", pass.PassID,
		"total", pass.Total,
		"status_changes", pass.StatusChanges,
	)
	return result, nil
}
