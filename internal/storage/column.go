package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/odin-social/timeline-server/internal/apperr"
	"github.com/odin-social/timeline-server/internal/bucket"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/model"
)

// ColumnStore is the messages/read_tags repository over Scylla/
// Cassandra, implementing the schema of spec.md §6: messages(user_id,
// date_bucket, date, message_id, content) primary-keyed on
// (user_id, date_bucket, date, message_id) with date clustering
// descending, and read_tags(user_id, message_id).
type ColumnStore struct {
	session *gocql.Session
	metrics *metrics.Metrics
}

// observe records how long a query took. Deferred with time.Now() at the
// call site so it covers the query's full wall-clock duration.
func (s *ColumnStore) observe(start time.Time) {
	s.metrics.ObserveColumnQuery(time.Since(start))
}

// InsertMessage writes one message row, bucketed by its authoring date.
func (s *ColumnStore) InsertMessage(ctx context.Context, m model.Message) error {
	defer s.observe(time.Now())
	b := bucket.FromDatetime(m.Date)
	const insert = `INSERT INTO messages (user_id, date_bucket, date, message_id, content) VALUES (?, ?, ?, ?, ?)`
	err := s.session.Query(insert, m.AuthorID[:], b.Timestamp(), m.Date, m.ID.String(), m.Content).WithContext(ctx).Exec()
	if err != nil {
		return apperr.Wrap(apperr.KindColumnStore, fmt.Errorf("storage: insert message: %w", err))
	}
	return nil
}

// MessagesInBucket issues one point query for (user, bucket) and returns
// every message row in it, already in clustering (date descending) order
// per spec.md §4.5 step 2. A row whose message_id does not parse is
// skipped: it is neither returned nor reported as an error, and the
// remaining rows of the bucket are still read.
func (s *ColumnStore) MessagesInBucket(ctx context.Context, user model.UserID, b bucket.TimeBucket) ([]model.Message, error) {
	defer s.observe(time.Now())
	const query = `SELECT date, message_id, content FROM messages WHERE user_id = ? AND date_bucket = ?`
	iter := s.session.Query(query, user[:], b.Timestamp()).WithContext(ctx).Iter()

	var messages []model.Message
	var date time.Time
	var rawID, content string
	for iter.Scan(&date, &rawID, &content) {
		mid, err := model.ParseMessageID(rawID)
		if err != nil {
			continue // per-row decode failure: skip, don't abort the bucket
		}
		messages = append(messages, model.Message{
			ID:       mid,
			AuthorID: mid.Author,
			Date:     date,
			Content:  content,
		})
	}
	if err := iter.Close(); err != nil {
		return messages, apperr.Wrap(apperr.KindColumnStore, fmt.Errorf("storage: iterate messages bucket: %w", err))
	}
	return messages, nil
}

// TagRead marks (user, msgID) as seen.
func (s *ColumnStore) TagRead(ctx context.Context, user model.UserID, msgID model.MessageID) error {
	defer s.observe(time.Now())
	const insert = `INSERT INTO read_tags (user_id, message_id) VALUES (?, ?)`
	err := s.session.Query(insert, user[:], msgID.String()).WithContext(ctx).Exec()
	if err != nil {
		return apperr.Wrap(apperr.KindColumnStore, fmt.Errorf("storage: tag read: %w", err))
	}
	return nil
}

// TagUnread removes the seen tag for (user, msgID). Idempotent: removing
// an absent tag is not an error.
func (s *ColumnStore) TagUnread(ctx context.Context, user model.UserID, msgID model.MessageID) error {
	defer s.observe(time.Now())
	const del = `DELETE FROM read_tags WHERE user_id = ? AND message_id = ?`
	err := s.session.Query(del, user[:], msgID.String()).WithContext(ctx).Exec()
	if err != nil {
		return apperr.Wrap(apperr.KindColumnStore, fmt.Errorf("storage: tag unread: %w", err))
	}
	return nil
}

// IsRead reports whether (user, msgID) has a seen tag.
func (s *ColumnStore) IsRead(ctx context.Context, user model.UserID, msgID model.MessageID) (bool, error) {
	defer s.observe(time.Now())
	const query = `SELECT message_id FROM read_tags WHERE user_id = ? AND message_id = ?`
	var rawID string
	err := s.session.Query(query, user[:], msgID.String()).WithContext(ctx).Scan(&rawID)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.KindColumnStore, fmt.Errorf("storage: is read: %w", err))
	}
	return true, nil
}
