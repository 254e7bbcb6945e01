// Package sqlite implements store.Backend on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"feedsync/internal/model"
	"feedsync/internal/snowflake"
	"feedsync/internal/store"
)

// ErrRecordNotFound is returned by Update for an unknown id.
var ErrRecordNotFound = errors.New("record not found")

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
}

type Backend struct {
	db  dbtx
	ids *snowflake.Generator
	now func() time.Time
}

var _ store.Backend = (*Backend)(nil)

func New(db dbtx, ids *snowflake.Generator) *Backend {
	return &Backend{db: db, ids: ids, now: time.Now}
}

func (b *Backend) FindByGUID(ctx context.Context, guid string) (*model.RemoteRecord, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT id, url, created_at, updated_at FROM records WHERE guid = ? LIMIT 1`, guid)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return &record, nil
}

func (b *Backend) Create(ctx context.Context, props store.Properties) (model.RemoteRecord, error) {
	tags, err := encodeTags(props.Tags)
	if err != nil {
		return model.RemoteRecord{}, err
	}
	id := b.ids.NextID()
	now := b.now().UTC()
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO records (id, guid, title, url, source, summary, published_at, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, props.GUID, props.Title, props.URL, props.Source, props.Summary,
		formatPublished(props.PublishedAt), tags, formatTime(now), formatTime(now),
	)
	if err != nil {
		return model.RemoteRecord{}, fmt.Errorf("insert record: %w", err)
	}
	return model.RemoteRecord{
		ID:        strconv.FormatInt(id, 10),
		URL:       props.URL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (b *Backend) Update(ctx context.Context, id string, props store.Properties) (model.RemoteRecord, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return model.RemoteRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	tags, err := encodeTags(props.Tags)
	if err != nil {
		return model.RemoteRecord{}, err
	}
	now := b.now().UTC()
	res, err := b.db.ExecContext(ctx,
		`UPDATE records SET guid = ?, title = ?, url = ?, source = ?, summary = ?, published_at = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		props.GUID, props.Title, props.URL, props.Source, props.Summary,
		formatPublished(props.PublishedAt), tags, formatTime(now), rowID,
	)
	if err != nil {
		return model.RemoteRecord{}, fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.RemoteRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	row := b.db.QueryRowContext(ctx, `SELECT id, url, created_at, updated_at FROM records WHERE id = ?`, rowID)
	record, err := scanRecord(row)
	if err != nil {
		return model.RemoteRecord{}, fmt.Errorf("reload record: %w", err)
	}
	return record, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Count returns the number of stored records.
func (b *Backend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanRecord(row *sql.Row) (model.RemoteRecord, error) {
	var (
		id                   int64
		url                  string
		createdAt, updatedAt string
	)
	if err := row.Scan(&id, &url, &createdAt, &updatedAt); err != nil {
		return model.RemoteRecord{}, err
	}
	record := model.RemoteRecord{ID: strconv.FormatInt(id, 10), URL: url}
	record.CreatedAt, _ = parseTime(createdAt)
	record.UpdatedAt, _ = parseTime(updatedAt)
	return record, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func formatPublished(t *time.Time) any {
	if t == nil {
		return nil
	}
	return model.FormatISO8601(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
