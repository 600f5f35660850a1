// Package blob persists harvested records as JSON documents on a BlobStore.
//
// Each record is written to a path derived from its identity, so storing the
// same record again overwrites the previous document.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/harvester/internal/crawler"
)

const contentType = "application/json"

// Sink writes records under {prefix}/{kind}/{id}.json.
type Sink struct {
	store  crawler.BlobStore
	prefix string
	logger *zap.Logger
}

// New wraps store. prefix may be empty.
func New(store crawler.BlobStore, prefix string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("blob_sink"),
	}
}

// StoreContent writes the item under its content kind.
func (s *Sink) StoreContent(ctx context.Context, item crawler.ContentItem) error {
	return s.put(ctx, string(item.Kind), item.ID, item)
}

// StoreComment writes the comment under comment/.
func (s *Sink) StoreComment(ctx context.Context, comment crawler.CommentItem) error {
	return s.put(ctx, "comment", comment.ID, comment)
}

// StoreCreator writes the creator under creator/.
func (s *Sink) StoreCreator(ctx context.Context, creator crawler.Creator) error {
	return s.put(ctx, "creator", creator.ID, creator)
}

// StoreTopic writes the topic under question/.
func (s *Sink) StoreTopic(ctx context.Context, topic crawler.QuestionTopic) error {
	return s.put(ctx, "question", topic.ID, topic)
}

// ObjectPath returns where a record of kind with id is written.
func (s *Sink) ObjectPath(kind, id string) string {
	return path.Join(s.prefix, kind, id+".json")
}

func (s *Sink) put(ctx context.Context, kind, id string, record any) error {
	if kind == "" {
		return fmt.Errorf("store %s: kind is required", id)
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("store %s: invalid id %q", kind, id)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	objectPath := s.ObjectPath(kind, id)
	uri, err := s.store.PutObject(ctx, objectPath, contentType, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("put %s: %w", objectPath, err)
	}
	s.logger.Debug("document stored", zap.String("kind", kind), zap.String("id", id), zap.String("uri", uri))
	return nil
}

var _ crawler.Sink = (*Sink)(nil)
