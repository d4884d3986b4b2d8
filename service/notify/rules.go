package notify

import (
	"context"
	"fmt"
)

// Domain events arriving on the bus. Payload fields carry everything the
// notification rules need, so no extra data-layer round trips happen here.

type MessageCreatedEvent struct {
	ConversationID string   `json:"conversation_id"`
	Sender         string   `json:"sender"`
	Participants   []string `json:"participants"`
}

type FavoriteAddedEvent struct {
	ListingID    string `json:"listing_id"`
	ListingTitle string `json:"listing_title"`
	Owner        string `json:"owner"`
	User         string `json:"user"`
}

type ListingCreatedEvent struct {
	ListingID string   `json:"listing_id"`
	Title     string   `json:"title"`
	Owner     string   `json:"owner"`
	Followers []string `json:"followers"`
}

// HandleMessageCreated notifies every conversation participant except the
// sender.
func (p *Publisher) HandleMessageCreated(ctx context.Context, ev *MessageCreatedEvent) error {
	var firstErr error
	for _, recipient := range ev.Participants {
		if recipient == ev.Sender {
			continue
		}
		content := fmt.Sprintf("You have a new message from %s", ev.Sender)
		if _, err := p.Publish(ctx, recipient, ev.Sender, TypeMessage, content, ev.ConversationID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleFavoriteAdded notifies the listing owner, unless they favorited
// their own listing.
func (p *Publisher) HandleFavoriteAdded(ctx context.Context, ev *FavoriteAddedEvent) error {
	if ev.Owner == ev.User {
		return nil
	}
	content := fmt.Sprintf("%s added your listing %q to favorites", ev.User, ev.ListingTitle)
	_, err := p.Publish(ctx, ev.Owner, ev.User, TypeFavorite, content, ev.ListingID)
	return err
}

// HandleListingCreated notifies each follower of the listing owner.
func (p *Publisher) HandleListingCreated(ctx context.Context, ev *ListingCreatedEvent) error {
	var firstErr error
	content := fmt.Sprintf("%s posted a new listing: %q", ev.Owner, ev.Title)
	for _, follower := range ev.Followers {
		if _, err := p.Publish(ctx, follower, ev.Owner, TypeSubscription, content, ev.ListingID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
