// Package queue defines message payloads exchanged over the message broker
// and the background consumer that audits them.
package queue

import "time"

// Event types published by the services.
const (
	UserRegistered = "user.registered"
	StoreCreated   = "store.created"
	StoreUpdated   = "store.updated"
	StoreDeleted   = "store.deleted"
)

// DefaultQueue is the durable queue every event is routed to.
const DefaultQueue = "pasal.events"

// Event is published after a user or store changes.  It carries enough to
// audit the change without querying the primary database, and never any
// credential material.
type Event struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	StoreID    string `json:"store_id,omitempty"`
	Subdomain  string `json:"subdomain,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewEvent stamps an event of type typ with the current UTC time.
func NewEvent(typ, userID string) Event {
	return Event{Type: typ, UserID: userID, OccurredAt: time.Now().UTC().Format(time.RFC3339)}
}
