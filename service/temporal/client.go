package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// Client is the production Scheduler backed by Temporal schedules.
type Client struct {
	client    client.Client
	taskQueue string
	network   string
	logger    *slog.Logger
}

// NewClient connects to Temporal. Schedules it creates are scoped by network.
func NewClient(host, namespace, taskQueue, network string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	return &Client{client: c, taskQueue: taskQueue, network: network, logger: logger}, nil
}

func (c *Client) scheduleOptions(address string, interval time.Duration) client.ScheduleOptions {
	return client.ScheduleOptions{
		ID: scheduleID(c.network, address),
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        workflowID(c.network, address),
			Workflow:  ReconcileAddressWorkflowName,
			TaskQueue: c.taskQueue,
			Args:      []interface{}{ReconcileAddressInput{Address: address}},
		},
		// A pass still running when the next one is due is not doubled up.
		Overlap: 0,
		Memo: map[string]interface{}{
			"address":    address,
			"network":    c.network,
			"created_by": "txfeed",
		},
	}
}

// UpsertReconcileSchedule creates the schedule for address or updates its interval.
func (c *Client) UpsertReconcileSchedule(ctx context.Context, address string, interval time.Duration) error {
	id := scheduleID(c.network, address)
	handle := c.client.ScheduleClient().GetHandle(ctx, id)

	if _, err := handle.Describe(ctx); err != nil {
		c.logger.DebugContext(ctx, "schedule not found, creating", "schedule_id", id, "error", err)
		if _, err := c.client.ScheduleClient().Create(ctx, c.scheduleOptions(address, interval)); err != nil {
			return fmt.Errorf("failed to create schedule %q: %w", id, err)
		}
		c.logger.InfoContext(ctx, "reconcile schedule created",
			"address", address,
			"schedule_id", id,
			"interval", interval,
		)
		return nil
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{{Every: interval}}
			return &client.ScheduleUpdate{Schedule: &input.Description.Schedule}, nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.InfoContext(ctx, "reconcile schedule updated",
		"address", address,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// DeleteReconcileSchedule deletes the schedule for address.
func (c *Client) DeleteReconcileSchedule(ctx context.Context, address string) error {
	id := scheduleID(c.network, address)
	if err := c.client.ScheduleClient().GetHandle(ctx, id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}
	c.logger.InfoContext(ctx, "reconcile schedule deleted", "address", address, "schedule_id", id)
	return nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) { l.logger.Debug(msg, keyvals...) }
func (l *temporalLogger) Info(msg string, keyvals ...interface{})  { l.logger.Info(msg, keyvals...) }
func (l *temporalLogger) Warn(msg string, keyvals ...interface{})  { l.logger.Warn(msg, keyvals...) }
func (l *temporalLogger) Error(msg string, keyvals ...interface{}) { l.logger.Error(msg, keyvals...) }
