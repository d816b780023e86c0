package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"waitroom-triage/pkg"
)

// MemoryStore keeps everything in process memory. It is used by tests and
// by the "memory" store driver. Sessions are deep-copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]*pkg.TriageSession
	updated  map[string]time.Time
	messages map[string][]pkg.Message
	tickets  map[string]pkg.HandoffTicket
	nextID   int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*pkg.TriageSession),
		updated:  make(map[string]time.Time),
		messages: make(map[string][]pkg.Message),
		tickets:  make(map[string]pkg.HandoffTicket),
	}
}

func (m *MemoryStore) GetOrCreateSession(_ context.Context, conversationID, patientID string) (*pkg.TriageSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[conversationID]; ok {
		return s.Clone(), nil
	}
	s := pkg.NewTriageSession(conversationID, patientID, m.now())
	m.sessions[conversationID] = s.Clone()
	m.updated[conversationID] = m.now()
	return s, nil
}

func (m *MemoryStore) GetSession(_ context.Context, conversationID string) (*pkg.TriageSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conversationID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s *pkg.TriageSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.MarkEventsPersisted()
	m.sessions[s.SessionID] = s.Clone()
	m.updated[s.SessionID] = m.now()
	return nil
}

// ListSessions returns the most recently saved sessions first.
func (m *MemoryStore) ListSessions(_ context.Context, limit int) ([]pkg.SessionPreview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pkg.SessionPreview, 0, len(m.sessions))
	for id, s := range m.sessions {
		out = append(out, pkg.SessionPreview{
			ConversationID: id,
			PatientID:      s.PatientID,
			State:          s.State,
			UpdatedAt:      m.updated[id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ConversationID < out[j].ConversationID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, conversationID string, role pkg.MessageRole, content string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.messages[conversationID] = append(m.messages[conversationID], pkg.Message{
		ID:             m.nextID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	})
	return nil
}

func (m *MemoryStore) GetTranscript(_ context.Context, conversationID string, limit int) ([]pkg.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	if limit >= 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]pkg.Message{}, msgs...), nil
}

func (m *MemoryStore) CountMessages(_ context.Context, conversationID string, role pkg.MessageRole) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages[conversationID] {
		if msg.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) AddHandoffTicket(_ context.Context, t *pkg.HandoffTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.TicketID] = *t
	return nil
}

func (m *MemoryStore) ListHandoffTickets(_ context.Context, limit int) ([]pkg.HandoffTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pkg.HandoffTicket, 0, len(m.tickets))
	for _, t := range m.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TicketID > out[j].TicketID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ResolveHandoffTicket(_ context.Context, ticketID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticketID]; !ok {
		return 0, ErrTicketNotFound
	}
	delete(m.tickets, ticketID)
	return len(m.tickets), nil
}

func (m *MemoryStore) Close() error { return nil }
