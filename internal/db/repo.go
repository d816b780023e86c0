package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"waitroom-triage/pkg"
)

// Dialect selects the SQL flavour of a Repository.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	// ErrSessionNotFound is returned when no session exists for an id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTicketNotFound is returned when resolving an unknown ticket.
	ErrTicketNotFound = errors.New("handoff ticket not found")
)

// Repository stores sessions, messages, audit events and handoff tickets in
// a SQL database. Session payloads, audit details and message bodies are
// encrypted at rest.
type Repository struct {
	DB       *sql.DB
	dialect  Dialect
	cipher   *Cipher
	notifier *Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewRepository constructs a Repository from an existing sql.DB. The caller
// owns the DB connection lifecycle unless Close is called. notifier may be
// nil.
func NewRepository(db *sql.DB, dialect Dialect, cipher *Cipher, notifier *Notifier, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		DB:       db,
		dialect:  dialect,
		cipher:   cipher,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the underlying database.
func (r *Repository) Close() error { return r.DB.Close() }

// q rewrites ? placeholders to $n for Postgres.
func (r *Repository) q(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// GetOrCreateSession loads the session for conversationID, creating an IDLE
// one on first contact.
func (r *Repository) GetOrCreateSession(ctx context.Context, conversationID, patientID string) (*pkg.TriageSession, error) {
	s, err := r.GetSession(ctx, conversationID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	s = pkg.NewTriageSession(conversationID, patientID, r.now())
	if err := r.SaveSession(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession loads a stored session with its full audit log.
func (r *Repository) GetSession(ctx context.Context, conversationID string) (*pkg.TriageSession, error) {
	var token string
	err := r.DB.QueryRowContext(ctx,
		r.q(`SELECT payload FROM sessions WHERE conversation_id = ?`), conversationID,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	plain, err := r.cipher.Open(token)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", conversationID, err)
	}
	var s pkg.TriageSession
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	events, err := r.GetAuditEvents(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	s.AuditLog = events
	s.MarkEventsPersisted()
	return &s, nil
}

// SaveSession upserts the session payload and appends the audit events not
// yet stored, in one transaction.
func (r *Repository) SaveSession(ctx context.Context, s *pkg.TriageSession) error {
	snapshot := *s
	snapshot.AuditLog = nil
	plain, err := json.Marshal(&snapshot)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	token, err := r.cipher.Seal(plain)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now().UnixNano()
	_, err = tx.ExecContext(ctx, r.q(
		`INSERT INTO sessions (conversation_id, patient_id, state, payload, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (conversation_id) DO UPDATE
         SET state = excluded.state, payload = excluded.payload, updated_at = excluded.updated_at`),
		s.SessionID, s.PatientID, string(s.State), token, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	base := s.PersistedEvents()
	for i, ev := range s.UnsavedEvents() {
		details, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		sealed, err := r.cipher.Seal(details)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, r.q(
			`INSERT INTO audit_events (conversation_id, seq, event_time, agent, action, details)
             VALUES (?, ?, ?, ?, ?, ?)`),
			s.SessionID, base+i, ev.Timestamp.UnixNano(), ev.Agent, ev.Action, sealed,
		)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.MarkEventsPersisted()
	return nil
}

// GetAuditEvents returns the audit log of a conversation in insertion order.
func (r *Repository) GetAuditEvents(ctx context.Context, conversationID string) ([]pkg.AuditEvent, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(
		`SELECT event_time, agent, action, details
         FROM audit_events
         WHERE conversation_id = ?
         ORDER BY seq ASC`), conversationID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []pkg.AuditEvent{}
	for rows.Next() {
		var (
			at    int64
			ev    pkg.AuditEvent
			token string
		)
		if err := rows.Scan(&at, &ev.Agent, &ev.Action, &token); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		plain, err := r.cipher.Open(token)
		if err != nil {
			return nil, fmt.Errorf("audit event: %w", err)
		}
		if err := json.Unmarshal(plain, &ev.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		ev.Timestamp = time.Unix(0, at).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListSessions returns the most recently touched sessions first.
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]pkg.SessionPreview, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(
		`SELECT conversation_id, patient_id, state, updated_at
         FROM sessions
         ORDER BY updated_at DESC
         LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []pkg.SessionPreview{}
	for rows.Next() {
		var (
			p  pkg.SessionPreview
			at int64
		)
		if err := rows.Scan(&p.ConversationID, &p.PatientID, &p.State, &at); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		p.UpdatedAt = time.Unix(0, at).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendMessage stores one chat message.
func (r *Repository) AppendMessage(ctx context.Context, conversationID string, role pkg.MessageRole, content string, at time.Time) error {
	sealed, err := r.cipher.Seal([]byte(content))
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, r.q(
		`INSERT INTO messages (conversation_id, role, content, created_at)
         VALUES (?, ?, ?, ?)`),
		conversationID, string(role), sealed, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetTranscript returns the last limit messages of a conversation in
// chronological order.
func (r *Repository) GetTranscript(ctx context.Context, conversationID string, limit int) ([]pkg.Message, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(
		`SELECT id, role, content, created_at
         FROM messages
         WHERE conversation_id = ?
         ORDER BY id DESC
         LIMIT ?`), conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var newestFirst []pkg.Message
	for rows.Next() {
		var (
			m     pkg.Message
			token string
			at    int64
		)
		if err := rows.Scan(&m.ID, &m.Role, &token, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		plain, err := r.cipher.Open(token)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", m.ID, err)
		}
		m.ConversationID = conversationID
		m.Content = string(plain)
		m.CreatedAt = time.Unix(0, at).UTC()
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	transcript := make([]pkg.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		transcript = append(transcript, newestFirst[i])
	}
	return transcript, nil
}

// CountMessages counts the messages of one role in a conversation.
func (r *Repository) CountMessages(ctx context.Context, conversationID string, role pkg.MessageRole) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, r.q(
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND role = ?`),
		conversationID, string(role),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// AddHandoffTicket stores a ticket and, on Postgres, notifies listeners.
// A failed notification is logged; the ticket itself is already durable.
func (r *Repository) AddHandoffTicket(ctx context.Context, t *pkg.HandoffTicket) error {
	_, err := r.DB.ExecContext(ctx, r.q(
		`INSERT INTO handoff_tickets (ticket_id, conversation_id, reason, user_message, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (ticket_id) DO UPDATE
         SET conversation_id = excluded.conversation_id, reason = excluded.reason,
             user_message = excluded.user_message, created_at = excluded.created_at`),
		t.TicketID, t.ConversationID, t.Reason, t.UserMessage, t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert handoff ticket: %w", err)
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, t.TicketID); err != nil {
			r.logger.Warn("handoff notify failed", zap.String("ticket_id", t.TicketID), zap.Error(err))
		}
	}
	return nil
}

// ListHandoffTickets returns open tickets, newest first.
func (r *Repository) ListHandoffTickets(ctx context.Context, limit int) ([]pkg.HandoffTicket, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(
		`SELECT ticket_id, conversation_id, reason, user_message, created_at
         FROM handoff_tickets
         ORDER BY created_at DESC
         LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query handoff tickets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tickets := []pkg.HandoffTicket{}
	for rows.Next() {
		var (
			t  pkg.HandoffTicket
			at int64
		)
		if err := rows.Scan(&t.TicketID, &t.ConversationID, &t.Reason, &t.UserMessage, &at); err != nil {
			return nil, fmt.Errorf("scan handoff ticket: %w", err)
		}
		t.CreatedAt = time.Unix(0, at).UTC()
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// ResolveHandoffTicket deletes a ticket and returns how many remain open.
func (r *Repository) ResolveHandoffTicket(ctx context.Context, ticketID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, r.q(`DELETE FROM handoff_tickets WHERE ticket_id = ?`), ticketID)
	if err != nil {
		return 0, fmt.Errorf("delete handoff ticket: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrTicketNotFound
	}
	var remaining int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM handoff_tickets`).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("count handoff tickets: %w", err)
	}
	return remaining, nil
}
