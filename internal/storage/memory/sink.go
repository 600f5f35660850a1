// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// Sink keeps harvested records in maps keyed by id. Every store is an upsert:
// writing the same id again replaces the previous record.
type Sink struct {
	mu       sync.RWMutex
	contents map[string]crawler.ContentItem
	comments map[string]crawler.CommentItem
	creators map[string]crawler.Creator
	topics   map[string]crawler.QuestionTopic
	writes   int
}

// NewSink constructs an empty Sink.
func NewSink() *Sink {
	return &Sink{
		contents: make(map[string]crawler.ContentItem),
		comments: make(map[string]crawler.CommentItem),
		creators: make(map[string]crawler.Creator),
		topics:   make(map[string]crawler.QuestionTopic),
	}
}

// StoreContent upserts a content item keyed by its identity.
func (s *Sink) StoreContent(_ context.Context, item crawler.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[item.Identity()] = item
	s.writes++
	return nil
}

// StoreComment upserts a comment keyed by id.
func (s *Sink) StoreComment(_ context.Context, comment crawler.CommentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = comment
	s.writes++
	return nil
}

// StoreCreator upserts a creator keyed by id.
func (s *Sink) StoreCreator(_ context.Context, creator crawler.Creator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creators[creator.ID] = creator
	s.writes++
	return nil
}

// StoreTopic upserts a question topic keyed by id.
func (s *Sink) StoreTopic(_ context.Context, topic crawler.QuestionTopic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic.ID] = topic
	s.writes++
	return nil
}

// Content returns the stored item for (kind, id).
func (s *Sink) Content(kind crawler.ContentKind, id string) (crawler.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.contents[crawler.ContentItem{Kind: kind, ID: id}.Identity()]
	return item, ok
}

// Contents returns every stored item ordered by identity.
func (s *Sink) Contents() []crawler.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.ContentItem, 0, len(s.contents))
	for _, item := range s.contents {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity() < out[j].Identity() })
	return out
}

// Comments returns the stored comments of one content item ordered by id.
func (s *Sink) Comments(contentID string) []crawler.CommentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.CommentItem
	for _, c := range s.comments {
		if c.ContentID == contentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Creator returns the stored creator by id.
func (s *Sink) Creator(id string) (crawler.Creator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creators[id]
	return c, ok
}

// Topic returns the stored question topic by id.
func (s *Sink) Topic(id string) (crawler.QuestionTopic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[id]
	return t, ok
}

// Writes counts every store call, including overwrites.
func (s *Sink) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
