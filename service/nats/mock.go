package nats

import (
	"context"
	"sync"

	"github.com/brojonat/txfeed/service/activity"
)

// MockPublisher is an in-memory Publisher for tests.
type MockPublisher struct {
	mu           sync.RWMutex
	events       []*StatusChangeEvent
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishStatusChanges records one event per change, or returns the configured
// error. A done ctx fails the publish as it would against JetStream.
func (m *MockPublisher) PublishStatusChanges(ctx context.Context, address, network string, changes []activity.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.publishError != nil {
		return m.publishError
	}
	for _, c := range changes {
		m.events = append(m.events, NewStatusChangeEvent(address, network, c))
	}
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of everything published so far.
func (m *MockPublisher) Events() []*StatusChangeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*StatusChangeEvent, len(m.events))
	copy(events, m.events)
	return events
}

// EventsForAddress returns events published for a specific address.
func (m *MockPublisher) EventsForAddress(address string) []*StatusChangeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*StatusChangeEvent
	for _, e := range m.events {
		if e.Address == address {
			events = append(events, e)
		}
	}
	return events
}

// SetPublishError configures the error returned by PublishStatusChanges.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
