// Package scheduler runs the minute-interval polling loop that walks due
// scheduled posts and publishes them to their target platform.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/social-post-scheduler/internal/integration/tiktok"
	"github.com/iliyamo/social-post-scheduler/internal/model"
	"github.com/iliyamo/social-post-scheduler/internal/queue"
	"github.com/iliyamo/social-post-scheduler/internal/repository"
	qp "github.com/iliyamo/social-post-scheduler/internal/service"
	"github.com/iliyamo/social-post-scheduler/internal/storage"
)

// Scheduler owns the publish loop. Interval defaults to one minute.
type Scheduler struct {
	Users    *repository.UserRepo
	Posts    *repository.PostRepo
	Store    *storage.Store
	Client   *tiktok.Client
	Interval time.Duration
}

func New(users *repository.UserRepo, posts *repository.PostRepo, store *storage.Store, client *tiktok.Client) *Scheduler {
	return &Scheduler{Users: users, Posts: posts, Store: store, Client: client, Interval: time.Minute}
}

// Run ticks until the context is cancelled. Each tick is independent; an
// error in one post is logged, the post marked failed, and the loop moves
// on.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopping")
			return
		case <-ticker.C:
			s.publishDue(ctx)
		}
	}
}

func (s *Scheduler) publishDue(ctx context.Context) {
	due, err := s.Posts.DueForPublishing(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("scheduler: query due posts failed: %v", err)
		return
	}
	for _, p := range due {
		if err := s.publish(ctx, p); err != nil {
			log.Printf("scheduler: publish post %d failed: %v", p.ID, err)
			if err := s.Posts.SetStatus(ctx, p.ID, model.PostStatusFailed); err != nil {
				log.Printf("scheduler: mark post %d failed: %v", p.ID, err)
			}
			continue
		}
		if err := s.Posts.SetStatus(ctx, p.ID, model.PostStatusPublished); err != nil {
			log.Printf("scheduler: mark post %d published: %v", p.ID, err)
			continue
		}
		log.Printf("scheduler: published post %d (platform=%s)", p.ID, p.Platform)
		event := queue.PostPublishedEvent{
			PostID:      p.ID,
			UserID:      p.UserID,
			Platform:    p.Platform,
			PublishedAt: time.Now().UTC().Format(time.RFC3339),
		}
		// Event delivery is best effort; a broker outage must not block
		// the publish loop.
		_ = qp.PublishPostPublished(ctx, event)
	}
}

func (s *Scheduler) publish(ctx context.Context, p model.Post) error {
	switch p.Platform {
	case "tiktok":
		u, err := s.Users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		video, err := s.Store.Read(p.VideoFilename)
		if err != nil {
			return err
		}
		token, err := s.Client.EnsureValidToken(ctx, s.Users, &u)
		if err != nil {
			return err
		}
		_, err = s.Client.PostVideo(ctx, token, video, p.Content)
		return err
	default:
		// Platforms without an integration are considered published once
		// their time passes; the row keeps the platform name for later.
		return nil
	}
}
