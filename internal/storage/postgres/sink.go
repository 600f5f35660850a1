// Package postgres persists harvested records in Postgres.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink upserts harvested records into the harvest_* tables.
type Sink struct {
	pool execCloser
}

// New connects a pool and returns a Sink over it.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, &crawler.ConfigError{Field: "storage.postgres.dsn", Reason: "required for the postgres backend"}
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Sink{pool: pool}, nil
}

// NewWithPool constructs a Sink from an existing pool (primarily for testing).
func NewWithPool(pool execCloser) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Sink{pool: pool}, nil
}

// EnsureSchema creates the harvest tables if they do not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertContent = `
INSERT INTO harvest_contents (
	content_id, content_type, content_url, title, description, content_text,
	question_id, author_id, author_token, author_name,
	voteup_count, comment_count, created_at, updated_at, source_keyword
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (content_id, content_type) DO UPDATE SET
	content_url = EXCLUDED.content_url,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	content_text = EXCLUDED.content_text,
	question_id = EXCLUDED.question_id,
	author_id = EXCLUDED.author_id,
	author_token = EXCLUDED.author_token,
	author_name = EXCLUDED.author_name,
	voteup_count = EXCLUDED.voteup_count,
	comment_count = EXCLUDED.comment_count,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at,
	source_keyword = EXCLUDED.source_keyword,
	stored_at = now()`

// StoreContent upserts a content item keyed by (id, kind).
func (s *Sink) StoreContent(ctx context.Context, item crawler.ContentItem) error {
	if item.ID == "" {
		return fmt.Errorf("store content: id is required")
	}
	_, err := s.pool.Exec(ctx, upsertContent,
		item.ID,
		string(item.Kind),
		item.URL,
		item.Title,
		item.Desc,
		item.Text,
		item.QuestionID,
		item.Author.ID,
		item.Author.URLToken,
		item.Author.Nickname,
		item.VoteupCount,
		item.CommentCount,
		nullTime(item.CreatedAt),
		nullTime(item.UpdatedAt),
		item.SourceKeyword,
	)
	if err != nil {
		return fmt.Errorf("upsert content %s: %w", item.Identity(), err)
	}
	return nil
}

const upsertComment = `
INSERT INTO harvest_comments (
	comment_id, parent_comment_id, content_id, content_type, author_id, author_name,
	body, like_count, sub_comment_count, ip_location, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (comment_id) DO UPDATE SET
	parent_comment_id = EXCLUDED.parent_comment_id,
	body = EXCLUDED.body,
	like_count = EXCLUDED.like_count,
	sub_comment_count = EXCLUDED.sub_comment_count,
	ip_location = EXCLUDED.ip_location,
	stored_at = now()`

// StoreComment upserts a comment keyed by id.
func (s *Sink) StoreComment(ctx context.Context, comment crawler.CommentItem) error {
	if comment.ID == "" {
		return fmt.Errorf("store comment: id is required")
	}
	_, err := s.pool.Exec(ctx, upsertComment,
		comment.ID,
		comment.ParentID,
		comment.ContentID,
		string(comment.ContentKind),
		comment.Author.ID,
		comment.Author.Nickname,
		comment.Text,
		comment.LikeCount,
		comment.SubCommentCount,
		comment.IPLocation,
		nullTime(comment.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert comment %s: %w", comment.ID, err)
	}
	return nil
}

const upsertCreator = `
INSERT INTO harvest_creators (
	user_id, url_token, nickname, avatar, link, gender, ip_location,
	follows, fans, answer_count, article_count, video_count, voteup_count
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (user_id) DO UPDATE SET
	url_token = EXCLUDED.url_token,
	nickname = EXCLUDED.nickname,
	avatar = EXCLUDED.avatar,
	link = EXCLUDED.link,
	gender = EXCLUDED.gender,
	ip_location = EXCLUDED.ip_location,
	follows = EXCLUDED.follows,
	fans = EXCLUDED.fans,
	answer_count = EXCLUDED.answer_count,
	article_count = EXCLUDED.article_count,
	video_count = EXCLUDED.video_count,
	voteup_count = EXCLUDED.voteup_count,
	stored_at = now()`

// StoreCreator upserts a creator profile keyed by id.
func (s *Sink) StoreCreator(ctx context.Context, creator crawler.Creator) error {
	if creator.ID == "" {
		return fmt.Errorf("store creator: id is required")
	}
	_, err := s.pool.Exec(ctx, upsertCreator,
		creator.ID,
		creator.URLToken,
		creator.Nickname,
		creator.Avatar,
		creator.Link,
		creator.Gender,
		creator.IPLocation,
		creator.Follows,
		creator.Fans,
		creator.AnswerCount,
		creator.ArticleCount,
		creator.VideoCount,
		creator.VoteupCount,
	)
	if err != nil {
		return fmt.Errorf("upsert creator %s: %w", creator.ID, err)
	}
	return nil
}

const upsertTopic = `
INSERT INTO harvest_question_topics (
	question_id, question_url, title, detail, follower_count, view_count,
	answer_count, topics, author_name, author_token
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (question_id) DO UPDATE SET
	question_url = EXCLUDED.question_url,
	title = EXCLUDED.title,
	detail = EXCLUDED.detail,
	follower_count = EXCLUDED.follower_count,
	view_count = EXCLUDED.view_count,
	answer_count = EXCLUDED.answer_count,
	topics = EXCLUDED.topics,
	author_name = EXCLUDED.author_name,
	author_token = EXCLUDED.author_token,
	stored_at = now()`

// StoreTopic upserts a question topic keyed by question id.
func (s *Sink) StoreTopic(ctx context.Context, topic crawler.QuestionTopic) error {
	if topic.ID == "" {
		return fmt.Errorf("store topic: id is required")
	}
	topics := topic.Topics
	if topics == nil {
		topics = []string{}
	}
	_, err := s.pool.Exec(ctx, upsertTopic,
		topic.ID,
		topic.URL,
		topic.Title,
		topic.Detail,
		topic.FollowerCount,
		topic.ViewCount,
		topic.AnswerCount,
		topics,
		topic.AuthorName,
		topic.AuthorToken,
	)
	if err != nil {
		return fmt.Errorf("upsert topic %s: %w", topic.ID, err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ crawler.Sink = (*Sink)(nil)
