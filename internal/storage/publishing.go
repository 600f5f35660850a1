// Package storage holds sink decorators shared by the storage backends.
package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// ContentNotice is published after a content item is stored.
type ContentNotice struct {
	ID            string              `json:"content_id"`
	Kind          crawler.ContentKind `json:"content_type"`
	URL           string              `json:"content_url"`
	Title         string              `json:"title"`
	SourceKeyword string              `json:"source_keyword,omitempty"`
	StoredAt      time.Time           `json:"stored_at"`
}

// PublishingSink stores through the wrapped sink and then announces each
// stored content item. A failed publish is logged; the store still succeeds.
type PublishingSink struct {
	crawler.Sink
	publisher crawler.Publisher
	topic     string
	clock     crawler.Clock
	logger    *zap.Logger
}

// NewPublishingSink decorates sink. topic may be empty to use the publisher default.
func NewPublishingSink(sink crawler.Sink, publisher crawler.Publisher, topic string, clock crawler.Clock, logger *zap.Logger) *PublishingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishingSink{
		Sink:      sink,
		publisher: publisher,
		topic:     topic,
		clock:     clock,
		logger:    logger.Named("publishing_sink"),
	}
}

// StoreContent upserts item and publishes a ContentNotice for it.
func (s *PublishingSink) StoreContent(ctx context.Context, item crawler.ContentItem) error {
	if err := s.Sink.StoreContent(ctx, item); err != nil {
		return err
	}
	notice := ContentNotice{
		ID:            item.ID,
		Kind:          item.Kind,
		URL:           item.URL,
		Title:         item.Title,
		SourceKeyword: item.SourceKeyword,
		StoredAt:      s.now(),
	}
	id, err := s.publisher.Publish(ctx, s.topic, notice)
	if err != nil {
		s.logger.Warn("content notice not published",
			zap.String("key", item.Identity()),
			zap.Error(err),
		)
		return nil
	}
	s.logger.Debug("content notice published", zap.String("key", item.Identity()), zap.String("message_id", id))
	return nil
}

func (s *PublishingSink) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
