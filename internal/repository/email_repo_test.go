package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpilot/internal/model"
)

// memDB stores email rows keyed by message_id and answers the two statements
// Save issues: the conflict-ignoring insert and the lookup by message id.
type memDB struct {
	mu      sync.Mutex
	rows    map[string][]any
	nextID  int64
	inserts int
	updates int
}

func newMemDB() *memDB {
	return &memDB{rows: map[string][]any{}}
}

func (d *memDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case strings.Contains(sql, "INSERT INTO emails"):
		d.inserts++
		messageID := args[1].(string)
		if _, ok := d.rows[messageID]; ok {
			return memRow{err: pgx.ErrNoRows}
		}
		d.nextID++
		processed := args[16].(bool)
		var processedAt *time.Time
		if processed {
			now := time.Now()
			processedAt = &now
		}
		d.rows[messageID] = []any{
			d.nextID, args[0], messageID, args[2], args[3], args[4], args[5], args[6],
			args[7], args[8], args[9], args[10], args[11], args[12],
			args[13], args[14], false, args[15], processed,
			processedAt, time.Now(),
		}
		return memRow{vals: d.rows[messageID]}
	case strings.Contains(sql, "WHERE message_id = $1"):
		vals, ok := d.rows[args[0].(string)]
		if !ok {
			return memRow{err: pgx.ErrNoRows}
		}
		return memRow{vals: vals}
	}
	return memRow{err: fmt.Errorf("unexpected query: %s", sql)}
}

func (d *memDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.Contains(sql, "UPDATE") {
		d.updates++
	}
	return pgconn.CommandTag{}, errors.New("not supported")
}

func (d *memDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

type memRow struct {
	vals []any
	err  error
}

func (r memRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r.vals))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

func TestEmailRepository_SaveKeepsFirstRow(t *testing.T) {
	db := newMemDB()
	repo := NewEmailRepository(db)
	ctx := context.Background()
	userID := int64(7)
	email := model.RawEmail{MessageID: "m1", Subject: "Team Sync", Sender: "a@example.com", Body: "body", ReceivedAt: time.Now()}

	first, created, err := repo.Save(ctx, &userID, email, sampleResult("m1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), first.ID)
	require.NotNil(t, first.UserID)
	assert.Equal(t, int64(7), *first.UserID)
	assert.True(t, first.IsImportant)
	assert.NotNil(t, first.ProcessedAt)
	assert.Equal(t, []string{"Bob"}, first.Entities.People)
	require.NotNil(t, first.MeetingInfo)
	assert.Equal(t, []string{"3:00 PM"}, first.MeetingInfo.Dates)
	assert.Nil(t, first.CalendarEvent)

	changed := sampleResult("m1")
	changed.Summary = "something else"
	changed.Priority = model.PriorityLow
	second, created, err := repo.Save(ctx, nil, email, changed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Team sync tomorrow", second.Summary)
	assert.Equal(t, model.PriorityHigh, second.Priority)

	assert.Len(t, db.rows, 1)
	assert.Equal(t, 2, db.inserts)
	assert.Zero(t, db.updates)
}

func TestEmailRepository_SaveSurfacesInsertErrors(t *testing.T) {
	repo := NewEmailRepository(&failingDB{err: errors.New("connection reset")})

	_, _, err := repo.Save(context.Background(), nil, model.RawEmail{MessageID: "m1", Body: "b"}, sampleResult("m1"))

	assert.ErrorContains(t, err, "insert email: connection reset")
}

type failingDB struct {
	memDB
	err error
}

func (f *failingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return memRow{err: f.err}
}
