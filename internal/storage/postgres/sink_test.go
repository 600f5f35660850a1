package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harvester/internal/crawler"
)

func newMockSink(t *testing.T) (*Sink, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	sink, err := NewWithPool(mock)
	require.NoError(t, err)
	return sink, mock
}

func TestStoreContentUpserts(t *testing.T) {
	t.Parallel()
	sink, mock := newMockSink(t)

	created := time.Unix(1700000000, 0).UTC()
	item := crawler.ContentItem{
		ID:            "11",
		Kind:          crawler.KindAnswer,
		URL:           "https://www.zhihu.com/question/7/answer/11",
		Title:         "Why Go?",
		Text:          "because",
		QuestionID:    "7",
		Author:        crawler.CreatorRef{ID: "u1", URLToken: "alice", Nickname: "Alice"},
		VoteupCount:   3,
		CommentCount:  2,
		CreatedAt:     created,
		SourceKeyword: "go",
	}

	mock.ExpectExec("INSERT INTO harvest_contents .* ON CONFLICT \\(content_id, content_type\\) DO UPDATE").
		WithArgs(
			"11", "answer", item.URL, "Why Go?", "", "because", "7",
			"u1", "alice", "Alice", int64(3), int64(2),
			&created, (*time.Time)(nil), "go",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.StoreContent(context.Background(), item))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCommentCarriesNullableParent(t *testing.T) {
	t.Parallel()
	sink, mock := newMockSink(t)

	parent := "1"
	mock.ExpectExec("INSERT INTO harvest_comments").
		WithArgs("2", &parent, "11", "answer", "", "", "hi", int64(0), int64(0), "", (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO harvest_comments").
		WithArgs("3", (*string)(nil), "11", "answer", "", "", "root", int64(0), int64(0), "", (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	require.NoError(t, sink.StoreComment(ctx, crawler.CommentItem{ID: "2", ParentID: &parent, ContentID: "11", ContentKind: crawler.KindAnswer, Text: "hi"}))
	require.NoError(t, sink.StoreComment(ctx, crawler.CommentItem{ID: "3", ContentID: "11", ContentKind: crawler.KindAnswer, Text: "root"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreatorAndTopic(t *testing.T) {
	t.Parallel()
	sink, mock := newMockSink(t)

	mock.ExpectExec("INSERT INTO harvest_creators").
		WithArgs("u1", "alice", "Alice", "", "", "女", "", int64(1), int64(2), int64(3), int64(4), int64(5), int64(6)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO harvest_question_topics").
		WithArgs("42", "https://www.zhihu.com/question/42", "Why Go?", "", int64(0), int64(0), int64(0), []string{}, "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	require.NoError(t, sink.StoreCreator(ctx, crawler.Creator{
		ID: "u1", URLToken: "alice", Nickname: "Alice", Gender: "女",
		Follows: 1, Fans: 2, AnswerCount: 3, ArticleCount: 4, VideoCount: 5, VoteupCount: 6,
	}))
	require.NoError(t, sink.StoreTopic(ctx, crawler.QuestionTopic{ID: "42", URL: "https://www.zhihu.com/question/42", Title: "Why Go?"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWrapsExecErrors(t *testing.T) {
	t.Parallel()
	sink, mock := newMockSink(t)

	mock.ExpectExec("INSERT INTO harvest_contents").WillReturnError(errors.New("conn reset"))
	err := sink.StoreContent(context.Background(), crawler.ContentItem{ID: "1", Kind: crawler.KindVideo})
	require.ErrorContains(t, err, "upsert content zvideo:1")
}

func TestStoreRejectsMissingIDs(t *testing.T) {
	t.Parallel()
	sink, _ := newMockSink(t)
	ctx := context.Background()

	require.Error(t, sink.StoreContent(ctx, crawler.ContentItem{}))
	require.Error(t, sink.StoreComment(ctx, crawler.CommentItem{}))
	require.Error(t, sink.StoreCreator(ctx, crawler.Creator{}))
	require.Error(t, sink.StoreTopic(ctx, crawler.QuestionTopic{}))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()
	sink, mock := newMockSink(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS harvest_contents").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorIs(t, err, crawler.ErrConfiguration)

	_, err = NewWithPool(nil)
	require.Error(t, err)
}
