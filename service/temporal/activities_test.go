package temporal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
)

type fakeRunner struct {
	result *reconcile.PassResult
	err    error
	calls  []string
}

func (f *fakeRunner) Run(ctx context.Context, address string) (*reconcile.PassResult, error) {
	f.calls = append(f.calls, address)
	return f.result, f.err
}

func TestRunReconciliationPass(t *testing.T) {
	t.Run("summarises the pass", func(t *testing.T) {
		runner := &fakeRunner{result: &reconcile.PassResult{
			PassID:  "p1",
			Address: "addr",
			Listed:  5,
			Fetched: 2,
			Total:   7,
			Changes: []activity.StatusChange{
				{ActivityID: "o1", Signature: "s1", Status: activity.StatusConfirmed},
				{ActivityID: "o2", Signature: "s2", Status: activity.StatusFailed},
			},
			PatchErrors: 1,
		}}
		a := NewActivities(runner, nil)

		got, err := a.RunReconciliationPass(context.Background(), RunPassInput{Address: "addr"})
		require.NoError(t, err)
		assert.Equal(t, []string{"addr"}, runner.calls)
		assert.Equal(t, &PassSummary{
			PassID:        "p1",
			Listed:        5,
			Fetched:       2,
			Total:         7,
			StatusChanges: 2,
			PatchErrors:   1,
		}, got)
	})

	t.Run("invalid address is not retryable", func(t *testing.T) {
		runner := &fakeRunner{err: fmt.Errorf("%w: bad", activity.ErrInvalidAddress)}
		a := NewActivities(runner, nil)

		_, err := a.RunReconciliationPass(context.Background(), RunPassInput{Address: "bad"})
		require.Error(t, err)

		var appErr *temporalsdk.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())
		assert.Equal(t, ErrTypeInvalidAddress, appErr.Type())
	})

	t.Run("other errors pass through", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("store down")}
		a := NewActivities(runner, nil)

		_, err := a.RunReconciliationPass(context.Background(), RunPassInput{Address: "addr"})
		require.Error(t, err)

		var appErr *temporalsdk.ApplicationError
		assert.False(t, errors.As(err, &appErr))
		assert.Contains(t, err.Error(), "store down")
	})
}

func TestMockScheduler(t *testing.T) {
	ctx := context.Background()
	s := NewMockScheduler()

	require.NoError(t, s.UpsertReconcileSchedule(ctx, "addr", 30e9))
	require.NoError(t, s.UpsertReconcileSchedule(ctx, "addr", 60e9))
	d, ok := s.Interval("addr")
	require.True(t, ok)
	assert.Equal(t, int64(60e9), int64(d))
	assert.Equal(t, 1, s.ScheduleCount())

	require.NoError(t, s.DeleteReconcileSchedule(ctx, "addr"))
	assert.Error(t, s.DeleteReconcileSchedule(ctx, "addr"))
	assert.Zero(t, s.ScheduleCount())
}
