// Package sqlite persists harvested records in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/harvester/internal/crawler"
)

const schema = `
CREATE TABLE IF NOT EXISTS contents (
	content_id     TEXT NOT NULL,
	content_type   TEXT NOT NULL,
	content_url    TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	content_text   TEXT NOT NULL DEFAULT '',
	question_id    TEXT NOT NULL DEFAULT '',
	author_id      TEXT NOT NULL DEFAULT '',
	author_token   TEXT NOT NULL DEFAULT '',
	author_name    TEXT NOT NULL DEFAULT '',
	voteup_count   INTEGER NOT NULL DEFAULT 0,
	comment_count  INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL DEFAULT 0,
	source_keyword TEXT NOT NULL DEFAULT '',
	stored_at      INTEGER NOT NULL,
	PRIMARY KEY (content_id, content_type)
);
CREATE TABLE IF NOT EXISTS comments (
	comment_id        TEXT PRIMARY KEY,
	parent_comment_id TEXT,
	content_id        TEXT NOT NULL,
	content_type      TEXT NOT NULL,
	author_id         TEXT NOT NULL DEFAULT '',
	author_name       TEXT NOT NULL DEFAULT '',
	body              TEXT NOT NULL DEFAULT '',
	like_count        INTEGER NOT NULL DEFAULT 0,
	sub_comment_count INTEGER NOT NULL DEFAULT 0,
	ip_location       TEXT NOT NULL DEFAULT '',
	created_at        INTEGER NOT NULL DEFAULT 0,
	stored_at         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS creators (
	user_id      TEXT PRIMARY KEY,
	url_token    TEXT NOT NULL,
	nickname     TEXT NOT NULL DEFAULT '',
	avatar       TEXT NOT NULL DEFAULT '',
	link         TEXT NOT NULL DEFAULT '',
	gender       TEXT NOT NULL DEFAULT '',
	ip_location  TEXT NOT NULL DEFAULT '',
	follows      INTEGER NOT NULL DEFAULT 0,
	fans         INTEGER NOT NULL DEFAULT 0,
	answer_count INTEGER NOT NULL DEFAULT 0,
	article_count INTEGER NOT NULL DEFAULT 0,
	video_count  INTEGER NOT NULL DEFAULT 0,
	voteup_count INTEGER NOT NULL DEFAULT 0,
	stored_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS question_topics (
	question_id    TEXT PRIMARY KEY,
	question_url   TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	detail         TEXT NOT NULL DEFAULT '',
	follower_count INTEGER NOT NULL DEFAULT 0,
	view_count     INTEGER NOT NULL DEFAULT 0,
	answer_count   INTEGER NOT NULL DEFAULT 0,
	topics         TEXT NOT NULL DEFAULT '[]',
	author_name    TEXT NOT NULL DEFAULT '',
	author_token   TEXT NOT NULL DEFAULT '',
	stored_at      INTEGER NOT NULL
);`

// Sink upserts harvested records into a SQLite database.
type Sink struct {
	db   *sql.DB
	path string
	now  func() time.Time
	// mu serializes writers.
	mu sync.Mutex
}

// Open creates (if needed) and opens the database at path and applies the schema.
func Open(path string) (*Sink, error) {
	if path == "" {
		return nil, &crawler.ConfigError{Field: "storage.sqlite.path", Reason: "required for the sqlite backend"}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Sink{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// StoreContent upserts a content item keyed by (id, kind).
func (s *Sink) StoreContent(ctx context.Context, item crawler.ContentItem) error {
	err := s.exec(ctx, `
INSERT INTO contents (
	content_id, content_type, content_url, title, description, content_text, question_id,
	author_id, author_token, author_name, voteup_count, comment_count,
	created_at, updated_at, source_keyword, stored_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (content_id, content_type) DO UPDATE SET
	content_url = excluded.content_url,
	title = excluded.title,
	description = excluded.description,
	content_text = excluded.content_text,
	question_id = excluded.question_id,
	author_id = excluded.author_id,
	author_token = excluded.author_token,
	author_name = excluded.author_name,
	voteup_count = excluded.voteup_count,
	comment_count = excluded.comment_count,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at,
	source_keyword = excluded.source_keyword,
	stored_at = excluded.stored_at`,
		item.ID, string(item.Kind), item.URL, item.Title, item.Desc, item.Text, item.QuestionID,
		item.Author.ID, item.Author.URLToken, item.Author.Nickname, item.VoteupCount, item.CommentCount,
		unix(item.CreatedAt), unix(item.UpdatedAt), item.SourceKeyword, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert content %s: %w", item.Identity(), err)
	}
	return nil
}

// StoreComment upserts a comment keyed by id.
func (s *Sink) StoreComment(ctx context.Context, comment crawler.CommentItem) error {
	var parent sql.NullString
	if comment.ParentID != nil {
		parent = sql.NullString{String: *comment.ParentID, Valid: true}
	}
	err := s.exec(ctx, `
INSERT INTO comments (
	comment_id, parent_comment_id, content_id, content_type, author_id, author_name,
	body, like_count, sub_comment_count, ip_location, created_at, stored_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (comment_id) DO UPDATE SET
	parent_comment_id = excluded.parent_comment_id,
	body = excluded.body,
	like_count = excluded.like_count,
	sub_comment_count = excluded.sub_comment_count,
	ip_location = excluded.ip_location,
	stored_at = excluded.stored_at`,
		comment.ID, parent, comment.ContentID, string(comment.ContentKind), comment.Author.ID, comment.Author.Nickname,
		comment.Text, comment.LikeCount, comment.SubCommentCount, comment.IPLocation, unix(comment.CreatedAt), s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert comment %s: %w", comment.ID, err)
	}
	return nil
}

// StoreCreator upserts a creator keyed by id.
func (s *Sink) StoreCreator(ctx context.Context, creator crawler.Creator) error {
	err := s.exec(ctx, `
INSERT INTO creators (
	user_id, url_token, nickname, avatar, link, gender, ip_location,
	follows, fans, answer_count, article_count, video_count, voteup_count, stored_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (user_id) DO UPDATE SET
	url_token = excluded.url_token,
	nickname = excluded.nickname,
	avatar = excluded.avatar,
	link = excluded.link,
	gender = excluded.gender,
	ip_location = excluded.ip_location,
	follows = excluded.follows,
	fans = excluded.fans,
	answer_count = excluded.answer_count,
	article_count = excluded.article_count,
	video_count = excluded.video_count,
	voteup_count = excluded.voteup_count,
	stored_at = excluded.stored_at`,
		creator.ID, creator.URLToken, creator.Nickname, creator.Avatar, creator.Link, creator.Gender, creator.IPLocation,
		creator.Follows, creator.Fans, creator.AnswerCount, creator.ArticleCount, creator.VideoCount, creator.VoteupCount,
		s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert creator %s: %w", creator.ID, err)
	}
	return nil
}

// StoreTopic upserts a question topic keyed by question id.
func (s *Sink) StoreTopic(ctx context.Context, topic crawler.QuestionTopic) error {
	topics := topic.Topics
	if topics == nil {
		topics = []string{}
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("encode topics of %s: %w", topic.ID, err)
	}
	err = s.exec(ctx, `
INSERT INTO question_topics (
	question_id, question_url, title, detail, follower_count, view_count, answer_count,
	topics, author_name, author_token, stored_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (question_id) DO UPDATE SET
	question_url = excluded.question_url,
	title = excluded.title,
	detail = excluded.detail,
	follower_count = excluded.follower_count,
	view_count = excluded.view_count,
	answer_count = excluded.answer_count,
	topics = excluded.topics,
	author_name = excluded.author_name,
	author_token = excluded.author_token,
	stored_at = excluded.stored_at`,
		topic.ID, topic.URL, topic.Title, topic.Detail, topic.FollowerCount, topic.ViewCount, topic.AnswerCount,
		string(encoded), topic.AuthorName, topic.AuthorToken, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert topic %s: %w", topic.ID, err)
	}
	return nil
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

var _ crawler.Sink = (*Sink)(nil)
