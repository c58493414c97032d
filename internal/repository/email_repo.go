package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mailpilot/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

const emailColumns = `
	id, user_id, message_id, thread_id, subject, sender, body, received_at,
	summary, intent, priority, reasoning, entities, reply_suggestions,
	meeting_info, calendar_event, is_read, is_important, processed,
	processed_at, created_at`

// DBTX is the part of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type EmailRepository struct {
	db DBTX
}

func NewEmailRepository(db DBTX) *EmailRepository {
	return &EmailRepository{db: db}
}

// Save stores an enriched email. A row with the same message_id is never
// overwritten: on conflict the existing row is returned with created=false.
func (r *EmailRepository) Save(ctx context.Context, userID *int64, email model.RawEmail, res *model.EnrichmentResult) (*model.StoredEmail, bool, error) {
	entities, err := json.Marshal(res.Entities.Normalize())
	if err != nil {
		return nil, false, fmt.Errorf("encode entities: %w", err)
	}
	replies := res.ReplySuggestions
	if replies == nil {
		replies = []model.ReplySuggestion{}
	}
	repliesJSON, err := json.Marshal(replies)
	if err != nil {
		return nil, false, fmt.Errorf("encode replies: %w", err)
	}
	meetingJSON, err := nullableJSON(res.MeetingInfo)
	if err != nil {
		return nil, false, err
	}
	eventJSON, err := nullableJSON(res.CalendarEvent)
	if err != nil {
		return nil, false, err
	}

	var receivedAt *time.Time
	if !email.ReceivedAt.IsZero() {
		receivedAt = &email.ReceivedAt
	}

	query := `
		INSERT INTO emails (
			user_id, message_id, thread_id, subject, sender, body, received_at,
			summary, intent, priority, reasoning, entities, reply_suggestions,
			meeting_info, calendar_event, is_important, processed, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			CASE WHEN $17::boolean THEN NOW() END)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING` + emailColumns

	row := r.db.QueryRow(ctx, query,
		userID, email.MessageID, email.ThreadID, email.Subject, email.Sender, email.Body, receivedAt,
		res.Summary, string(res.Intent), string(res.Priority), res.Reasoning, entities, repliesJSON,
		meetingJSON, eventJSON, res.Priority == model.PriorityHigh, res.Processed,
	)
	stored, err := scanEmail(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("insert email: %w", err)
	}

	existing, err := r.GetByMessageID(ctx, email.MessageID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// ExistingMessageIDs reports which of ids are already stored.
func (r *EmailRepository) ExistingMessageIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := r.db.Query(ctx, `SELECT message_id FROM emails WHERE message_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// GetByMessageID returns one email or ErrNotFound.
func (r *EmailRepository) GetByMessageID(ctx context.Context, messageID string) (*model.StoredEmail, error) {
	row := r.db.QueryRow(ctx, `SELECT`+emailColumns+` FROM emails WHERE message_id = $1`, messageID)
	return scanEmail(row)
}

// List returns emails newest first.
func (r *EmailRepository) List(ctx context.Context, f model.EmailFilter) ([]model.StoredEmail, error) {
	var (
		where []string
		args  []any
	)
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.Intent != "" {
		args = append(args, string(f.Intent))
		where = append(where, fmt.Sprintf("intent = $%d", len(args)))
	}
	if f.Unread {
		where = append(where, "NOT is_read")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)

	query := `SELECT` + emailColumns + ` FROM emails`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY received_at DESC NULLS LAST, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.StoredEmail{}
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

// MarkRead sets is_read. Returns ErrNotFound for unknown ids.
func (r *EmailRepository) MarkRead(ctx context.Context, messageID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE emails SET is_read = TRUE WHERE message_id = $1`, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates the stored mailbox.
func (r *EmailRepository) Stats(ctx context.Context) (model.EmailStats, error) {
	stats := model.EmailStats{ByIntent: map[string]int{}}

	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE processed),
			COUNT(*) FILTER (WHERE NOT is_read),
			COUNT(*) FILTER (WHERE priority = 'high')
		FROM emails
	`).Scan(&stats.Total, &stats.Processed, &stats.Unread, &stats.HighPriority)
	if err != nil {
		return stats, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT intent, COUNT(*) FROM emails
		WHERE intent <> ''
		GROUP BY intent
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			intent string
			n      int
		)
		if err := rows.Scan(&intent, &n); err != nil {
			return stats, err
		}
		stats.ByIntent[intent] = n
	}
	return stats, rows.Err()
}

func scanEmail(row pgx.Row) (*model.StoredEmail, error) {
	var (
		e                          model.StoredEmail
		intent, priority           string
		entities, replies          []byte
		meetingInfo, calendarEvent []byte
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.MessageID, &e.ThreadID, &e.Subject, &e.Sender, &e.Body, &e.ReceivedAt,
		&e.Summary, &intent, &priority, &e.Reasoning, &entities, &replies,
		&meetingInfo, &calendarEvent, &e.IsRead, &e.IsImportant, &e.Processed,
		&e.ProcessedAt, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Intent = model.Intent(intent)
	e.Priority = model.Priority(priority)

	if err := json.Unmarshal(entities, &e.Entities); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	e.Entities = e.Entities.Normalize()
	if err := json.Unmarshal(replies, &e.ReplySuggestions); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	if len(meetingInfo) > 0 {
		e.MeetingInfo = &model.MeetingInfo{}
		if err := json.Unmarshal(meetingInfo, e.MeetingInfo); err != nil {
			return nil, fmt.Errorf("decode meeting info: %w", err)
		}
	}
	if len(calendarEvent) > 0 {
		e.CalendarEvent = &model.CalendarEvent{}
		if err := json.Unmarshal(calendarEvent, e.CalendarEvent); err != nil {
			return nil, fmt.Errorf("decode calendar event: %w", err)
		}
	}
	return &e, nil
}

// nullableJSON encodes v, mapping a nil pointer to SQL NULL.
func nullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return b, nil
}
