package nats

import (
	"fmt"
	"strconv"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/google/uuid"
)

const subjectPrefix = "activity.status"

// eventNamespace seeds the deterministic event ids below.
var eventNamespace = uuid.MustParse("6f1c9a0e-3a47-4c1b-9d53-2f0b8f7e4a11")

// Subject returns the subject status changes for address are published on.
// An empty address returns the wildcard matching every address.
func Subject(address string) string {
	if address == "" {
		return subjectPrefix + ".*"
	}
	return fmt.Sprintf("%s.%s", subjectPrefix, address)
}

// StatusChangeEvent is published to "activity.status.{address}" whenever a
// backend-linked activity changes status in a committed pass.
type StatusChangeEvent struct {
	// EventID is derived from the change itself so republishing the same
	// change after a retried pass is dropped by JetStream deduplication.
	EventID string `json:"event_id"`

	Address    string          `json:"address"`
	Network    string          `json:"network"`
	ActivityID string          `json:"activity_id"`
	Signature  string          `json:"signature"`
	Status     activity.Status `json:"status"`
	UpdatedAt  int64           `json:"updated_at"` // epoch milliseconds

	PublishedAt time.Time `json:"published_at"`
}

// NewStatusChangeEvent wraps a status change for publishing.
func NewStatusChangeEvent(address, network string, c activity.StatusChange) *StatusChangeEvent {
	return &StatusChangeEvent{
		EventID:     eventID(network, c),
		Address:     address,
		Network:     network,
		ActivityID:  c.ActivityID,
		Signature:   c.Signature,
		Status:      c.Status,
		UpdatedAt:   c.UpdatedAt,
		PublishedAt: time.Now().UTC(),
	}
}

func eventID(network string, c activity.StatusChange) string {
	name := network + "|" + c.ActivityID + "|" + c.Signature + "|" + string(c.Status) + "|" + strconv.FormatInt(c.UpdatedAt, 10)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}
