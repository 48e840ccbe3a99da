// Package queue defines message payloads exchanged over the message broker.
package queue

// Item change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

// ItemChangedEvent is published whenever an item is created or renamed.
// It carries the item as it looks after the change so consumers never need
// to call back into the service.
type ItemChangedEvent struct {
	Action     string `json:"action"`
	ItemID     int    `json:"id"`
	Name       string `json:"name"`
	OccurredAt string `json:"occurred_at"`
}
