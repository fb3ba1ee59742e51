// Package queue defines message payloads exchanged over the message broker.
package queue

// PostPublishedEvent is published when the scheduler (or a manual publish
// call) successfully pushes a post to its platform. It contains enough
// information for downstream consumers to log, notify, or trigger
// analytics without querying the primary database.
type PostPublishedEvent struct {
	PostID      uint64 `json:"post_id"`
	UserID      uint64 `json:"user_id"`
	Platform    string `json:"platform"`
	PublishedAt string `json:"published_at"`
}
