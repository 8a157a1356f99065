package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
)

const timelineColumns = `id, user_id, entity_type, entity_id, action, occurred_at, title, details, genres, reading_data`

// SQLTimelineStore implements TimelineStore on PostgreSQL or SQLite
type SQLTimelineStore struct {
	db      *sql.DB
	dialect Dialect
	log     *logger.Logger
}

func NewSQLTimelineStore(db *sql.DB, dialect Dialect, log *logger.Logger) *SQLTimelineStore {
	return &SQLTimelineStore{
		db:      db,
		dialect: dialect,
		log:     log.With("component", "timeline-store", "dialect", dialect.String()),
	}
}

func (s *SQLTimelineStore) Insert(ctx context.Context, event readmodel.NewTimelineEvent) (*readmodel.TimelineEvent, error) {
	stored := event.Materialize(0)
	row, err := encodeTimelineRow(stored)
	if err != nil {
		return nil, err
	}

	query := s.dialect.Rebind(`
		INSERT INTO timeline_events (user_id, entity_type, entity_id, action, occurred_at, title, details, genres, reading_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			action = EXCLUDED.action,
			occurred_at = EXCLUDED.occurred_at,
			title = EXCLUDED.title,
			details = EXCLUDED.details,
			genres = EXCLUDED.genres,
			reading_data = EXCLUDED.reading_data
		RETURNING id`)
	err = s.db.QueryRowContext(ctx, query,
		nullInt64(stored.UserID),
		stored.EntityType.String(),
		stored.EntityID,
		stored.Action,
		toMillis(stored.OccurredAt),
		stored.Title,
		row.details,
		row.genres,
		row.readingData,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("insert timeline event %s: %w", event.Ref(), err)
	}
	return stored, nil
}

// UpdateByEntity rewrites the row in one statement. An empty Action or zero
// OccurredAt keeps the stored column, so a concurrent Insert is never undone.
func (s *SQLTimelineStore) UpdateByEntity(ctx context.Context, ref readmodel.EntityRef, content readmodel.SnapshotContent) error {
	var next readmodel.TimelineEvent
	next.Apply(content)
	row, err := encodeTimelineRow(&next)
	if err != nil {
		return err
	}

	var (
		action     sql.NullString
		occurredAt sql.NullInt64
	)
	if content.Action != "" {
		action = sql.NullString{String: content.Action, Valid: true}
	}
	if !content.OccurredAt.IsZero() {
		occurredAt = sql.NullInt64{Int64: toMillis(content.OccurredAt), Valid: true}
	}

	query := s.dialect.Rebind(`
		UPDATE timeline_events
		SET action = COALESCE(?, action),
			occurred_at = COALESCE(?, occurred_at),
			title = ?, details = ?, genres = ?, reading_data = ?
		WHERE entity_type = ? AND entity_id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		action,
		occurredAt,
		next.Title,
		row.details,
		row.genres,
		row.readingData,
		ref.Type.String(),
		ref.ID,
	)
	if err != nil {
		return fmt.Errorf("update timeline event %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update timeline event %s: %w", ref, err)
	}
	if n == 0 {
		s.log.Debug("no timeline event to update", "entity", ref.String())
	}
	return nil
}

func (s *SQLTimelineStore) GetByEntity(ctx context.Context, ref readmodel.EntityRef) (*readmodel.TimelineEvent, bool, error) {
	query := s.dialect.Rebind(`SELECT ` + timelineColumns + ` FROM timeline_events WHERE entity_type = ? AND entity_id = ?`)
	event, err := scanTimelineEvent(s.db.QueryRowContext(ctx, query, ref.Type.String(), ref.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get timeline event %s: %w", ref, err)
	}
	return event, true, nil
}

func (s *SQLTimelineStore) DeleteByEntity(ctx context.Context, ref readmodel.EntityRef) error {
	query := s.dialect.Rebind(`DELETE FROM timeline_events WHERE entity_type = ? AND entity_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, ref.Type.String(), ref.ID); err != nil {
		return fmt.Errorf("delete timeline event %s: %w", ref, err)
	}
	return nil
}

func (s *SQLTimelineStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM timeline_events`); err != nil {
		return fmt.Errorf("delete timeline events: %w", err)
	}
	return nil
}

func (s *SQLTimelineStore) List(ctx context.Context, userID *int64, req readmodel.ListRequest) (*readmodel.Page[readmodel.TimelineEvent], error) {
	where := ""
	var args []any
	if userID != nil {
		where = " WHERE user_id = ?"
		args = append(args, *userID)
	}

	var total int64
	countQuery := s.dialect.Rebind(`SELECT COUNT(*) FROM timeline_events` + where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count timeline events: %w", err)
	}

	query := `SELECT ` + timelineColumns + ` FROM timeline_events` + where +
		` ORDER BY occurred_at ` + req.Direction.SQL() + `, id DESC`
	page := &readmodel.Page[readmodel.TimelineEvent]{Total: total}
	if req.ShowsAll() {
		page.Page = 1
		page.ShowAll = true
	} else {
		req = req.EnsurePageWithin(total)
		page.Page = req.Page
		page.PageSize = req.PageSize
		query += ` LIMIT ? OFFSET ?`
		args = append(args, req.PageSize, req.Offset())
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	page.Items = make([]readmodel.TimelineEvent, 0)
	for rows.Next() {
		event, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		page.Items = append(page.Items, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	if page.ShowAll {
		page.PageSize = max(len(page.Items), 1)
	}
	return page, nil
}

type timelineRow struct {
	details     string
	genres      string
	readingData sql.NullString
}

func encodeTimelineRow(e *readmodel.TimelineEvent) (timelineRow, error) {
	var row timelineRow
	details, err := json.Marshal(e.Details)
	if err != nil {
		return row, fmt.Errorf("marshal details: %w", err)
	}
	genres, err := json.Marshal(e.Genres)
	if err != nil {
		return row, fmt.Errorf("marshal genres: %w", err)
	}
	row.details = string(details)
	row.genres = string(genres)
	if e.ReadingData != nil {
		data, err := json.Marshal(e.ReadingData)
		if err != nil {
			return row, fmt.Errorf("marshal reading data: %w", err)
		}
		row.readingData = sql.NullString{String: string(data), Valid: true}
	}
	return row, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimelineEvent(sc rowScanner) (*readmodel.TimelineEvent, error) {
	var (
		e           readmodel.TimelineEvent
		userID      sql.NullInt64
		entityType  string
		occurredAt  int64
		details     string
		genres      string
		readingData sql.NullString
	)
	if err := sc.Scan(&e.ID, &userID, &entityType, &e.EntityID, &e.Action, &occurredAt, &e.Title, &details, &genres, &readingData); err != nil {
		return nil, err
	}
	t, err := readmodel.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	e.EntityType = t
	e.UserID = int64Ptr(userID)
	e.OccurredAt = fromMillis(occurredAt)
	if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	if err := json.Unmarshal([]byte(genres), &e.Genres); err != nil {
		return nil, fmt.Errorf("decode genres: %w", err)
	}
	if readingData.Valid {
		var rd readmodel.ReadingData
		if err := json.Unmarshal([]byte(readingData.String), &rd); err != nil {
			return nil, fmt.Errorf("decode reading data: %w", err)
		}
		e.ReadingData = &rd
	}
	if e.Details == nil {
		e.Details = []readmodel.Detail{}
	}
	if e.Genres == nil {
		e.Genres = []string{}
	}
	return &e, nil
}
