package service

import (
	"context"
	"time"

	"inspiro/internal/models"
	"inspiro/internal/repository"
)

// EventPublisher receives domain events after a successful mutation.
// Implementations must not block the request for long and must not fail it.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, models.Event) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func newEvent(typ string, actorID, recipientID, postID uint, payload any) models.Event {
	return models.Event{
		Type:        typ,
		ActorID:     actorID,
		RecipientID: recipientID,
		PostID:      postID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
}

// FilterPostForViewer returns post when viewerID may see it. Private posts of
// other authors are reported as missing.
func FilterPostForViewer(post *models.Post, viewerID uint) (*models.Post, error) {
	if post == nil || !post.VisibleTo(viewerID) {
		var id uint
		if post != nil {
			id = post.ID
		}
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// FilterPosts drops entries the viewer may not see. publicOnly drops every
// private entry, including the viewer's own.
func FilterPosts(posts []models.Post, viewerID uint, publicOnly bool) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if publicOnly && p.IsPrivate {
			continue
		}
		if !p.VisibleTo(viewerID) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// AssertCanMutate allows only the author to change a post.
func AssertCanMutate(post *models.Post, actorID uint) error {
	if actorID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	if post.AuthorID != actorID {
		return models.NewForbiddenError("Only the author can modify this post")
	}
	return nil
}

// profileVisibility is the scope applied to every list on ownerID's profile.
func profileVisibility(ownerID, viewerID uint) repository.Visibility {
	return repository.Visibility{
		ViewerID:   viewerID,
		PublicOnly: viewerID == 0 || ownerID != viewerID,
	}
}
