package temporal

import (
	"context"
	"time"
)

// Scheduler manages the Temporal schedules that trigger timer-driven passes.
// Each address gets one schedule starting ReconcileAddressWorkflow.
type Scheduler interface {
	// UpsertReconcileSchedule creates the schedule for address, or updates its interval.
	UpsertReconcileSchedule(ctx context.Context, address string, interval time.Duration) error

	// DeleteReconcileSchedule stops timer-driven passes for address.
	DeleteReconcileSchedule(ctx context.Context, address string) error
}

// scheduleID returns the Temporal schedule ID for an address on a network.
func scheduleID(network, address string) string {
	return "reconcile-" + network + "-" + address
}

// workflowID returns the ID of workflows started by the schedule of address.
func workflowID(network, address string) string {
	return "reconcile-address-" + network + "-" + address
}
