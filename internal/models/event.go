package models

import "time"

// Event types fanned out to live subscribers and the post event log.
const (
	EventPostCreated    = "post.created"
	EventPostUpdated    = "post.updated"
	EventPostDeleted    = "post.deleted"
	EventPostLiked      = "post.liked"
	EventPostSaved      = "post.saved"
	EventAccountDeleted = "account.deleted"
)

// Event is a domain event. RecipientID names the user who should be notified
// live. Broadcast events go to every connected client instead. An event with
// neither is only logged.
type Event struct {
	Type        string    `json:"type"`
	ActorID     uint      `json:"actor_id"`
	RecipientID uint      `json:"recipient_id,omitempty"`
	PostID      uint      `json:"post_id,omitempty"`
	Payload     any       `json:"payload,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Broadcast   bool      `json:"-"`
}
