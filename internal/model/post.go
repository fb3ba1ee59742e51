package model

import "time"

// Post statuses stored in posts.status.  A post starts out scheduled and
// moves to published or failed exactly once, driven by the scheduler or a
// manual publish call.
const (
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

// Post models a row in the `posts` table: a piece of content a user wants
// published on an external platform at a future time.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owner of the post.
//  Content       – text/caption of the post.
//  ScheduledTime – when the post should go out (UTC).
//  Platform      – target platform name (e.g. "twitter", "tiktok").
//  Status        – scheduled | published | failed.
//  VideoFilename – stored upload filename for video posts, empty otherwise.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type Post struct {
	ID            uint64    // posts.id
	UserID        uint64    // posts.user_id
	Content       string    // posts.content
	ScheduledTime time.Time // posts.scheduled_time
	Platform      string    // posts.platform
	Status        string    // posts.status
	VideoFilename string    // posts.video_filename
	CreatedAt     time.Time // posts.created_at
	UpdatedAt     time.Time // posts.updated_at
}
