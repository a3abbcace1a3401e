// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an activity log.
package queue

import "time"

// EventType names what happened to an entry.
type EventType string

const (
	EntryCreated EventType = "entry.created"
	EntryUpdated EventType = "entry.updated"
	EntryDeleted EventType = "entry.deleted"
)

// EntryEvent is published after an entry is written.  It carries enough
// information for consumers to log or notify without querying the store.
type EntryEvent struct {
	Type       EventType `json:"type"`
	EntryID    string    `json:"entry_id"`
	OwnerID    string    `json:"owner_id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Fields     []string  `json:"fields,omitempty"` // changed fields, updates only
	OccurredAt time.Time `json:"occurred_at"`
}
