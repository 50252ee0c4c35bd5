package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is an in-memory Scheduler for tests.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]time.Duration // address -> interval
	upsertErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{schedules: make(map[string]time.Duration)}
}

// UpsertReconcileSchedule records the schedule.
func (m *MockScheduler) UpsertReconcileSchedule(ctx context.Context, address string, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.schedules[address] = interval
	return nil
}

// DeleteReconcileSchedule removes the schedule, failing when there is none.
func (m *MockScheduler) DeleteReconcileSchedule(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.schedules[address]; !ok {
		return fmt.Errorf("schedule for %q not found", address)
	}
	delete(m.schedules, address)
	return nil
}

// SetUpsertError makes UpsertReconcileSchedule fail.
func (m *MockScheduler) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// SetDeleteError makes DeleteReconcileSchedule fail.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// Interval returns the scheduled interval for address.
func (m *MockScheduler) Interval(address string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.schedules[address]
	return d, ok
}

// ScheduleCount returns the number of schedules.
func (m *MockScheduler) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}
