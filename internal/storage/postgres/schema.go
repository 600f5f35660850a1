package postgres

// Schema creates the harvest tables. Every table is keyed so that stores can
// upsert with ON CONFLICT.
const Schema = `
CREATE TABLE IF NOT EXISTS harvest_contents (
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
	voteup_count   BIGINT NOT NULL DEFAULT 0,
	comment_count  BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ,
	source_keyword TEXT NOT NULL DEFAULT '',
	stored_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (content_id, content_type)
);

CREATE TABLE IF NOT EXISTS harvest_comments (
	comment_id        TEXT PRIMARY KEY,
	parent_comment_id TEXT,
	content_id        TEXT NOT NULL,
	content_type      TEXT NOT NULL,
	author_id         TEXT NOT NULL DEFAULT '',
	author_name       TEXT NOT NULL DEFAULT '',
	body              TEXT NOT NULL DEFAULT '',
	like_count        BIGINT NOT NULL DEFAULT 0,
	sub_comment_count BIGINT NOT NULL DEFAULT 0,
	ip_location       TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ,
	stored_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS harvest_comments_content_idx ON harvest_comments (content_id, content_type);

CREATE TABLE IF NOT EXISTS harvest_creators (
	user_id       TEXT PRIMARY KEY,
	url_token     TEXT NOT NULL,
	nickname      TEXT NOT NULL DEFAULT '',
	avatar        TEXT NOT NULL DEFAULT '',
	link          TEXT NOT NULL DEFAULT '',
	gender        TEXT NOT NULL DEFAULT '',
	ip_location   TEXT NOT NULL DEFAULT '',
	follows       BIGINT NOT NULL DEFAULT 0,
	fans          BIGINT NOT NULL DEFAULT 0,
	answer_count  BIGINT NOT NULL DEFAULT 0,
	article_count BIGINT NOT NULL DEFAULT 0,
	video_count   BIGINT NOT NULL DEFAULT 0,
	voteup_count  BIGINT NOT NULL DEFAULT 0,
	stored_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS harvest_question_topics (
	question_id    TEXT PRIMARY KEY,
	question_url   TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	detail         TEXT NOT NULL DEFAULT '',
	follower_count BIGINT NOT NULL DEFAULT 0,
	view_count     BIGINT NOT NULL DEFAULT 0,
	answer_count   BIGINT NOT NULL DEFAULT 0,
	topics         TEXT[] NOT NULL DEFAULT '{}',
	author_name    TEXT NOT NULL DEFAULT '',
	author_token   TEXT NOT NULL DEFAULT '',
	stored_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
