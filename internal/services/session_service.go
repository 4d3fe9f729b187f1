package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"partsagent/internal/database"
	"partsagent/internal/models"
)

const sessionTitleMaxLen = 50

// SessionService manages conversation sessions. SQLite is the durable store;
// a bounded in-memory window per session feeds the model context without a
// full-history query on every turn.
type SessionService struct {
	db         *database.DB
	windowSize int

	cacheMu sync.Mutex
	cache   map[string][]models.Message // last windowSize messages per session

	locks sync.Map // map[string]*sync.Mutex, one per session
}

// NewSessionService creates the session service
func NewSessionService(db *database.DB, windowSize int) *SessionService {
	if windowSize <= 0 {
		windowSize = 5
	}
	return &SessionService{
		db:         db,
		windowSize: windowSize,
		cache:      make(map[string][]models.Message),
	}
}

// Lock returns the mutex serializing turns for a session. Holding it from
// window read through final append keeps interleaved turns from corrupting
// each other's context.
func (s *SessionService) Lock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Create creates a new session and returns its ID
func (s *SessionService) Create() (string, error) {
	sessionID := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sessionID, "New conversation", now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	log.Printf("📝 Created new session: %s", sessionID)
	return sessionID, nil
}

// Get returns session details or nil when the session does not exist
func (s *SessionService) Get(sessionID string) (*models.SessionListItem, error) {
	row := s.db.QueryRow(`
		SELECT s.session_id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON s.session_id = m.session_id
		WHERE s.session_id = ?
		GROUP BY s.session_id`, sessionID)

	var item models.SessionListItem
	err := row.Scan(&item.SessionID, &item.Title, &item.CreatedAt, &item.UpdatedAt, &item.MessageCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &item, nil
}

// List returns sessions ordered by most recent update
func (s *SessionService) List(limit int) ([]models.SessionListItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT s.session_id, s.title, s.created_at, s.updated_at, COUNT(m.id)
		FROM sessions s
		LEFT JOIN messages m ON s.session_id = m.session_id
		GROUP BY s.session_id
		ORDER BY s.updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.SessionListItem{}
	for rows.Next() {
		var item models.SessionListItem
		if err := rows.Scan(&item.SessionID, &item.Title, &item.CreatedAt, &item.UpdatedAt, &item.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, item)
	}
	return sessions, rows.Err()
}

// History returns the full conversation history for a session.
// A missing session yields an empty history, not an error.
func (s *SessionService) History(sessionID string) ([]models.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, intent, entities, source_urls, tool_trace, timestamp
		FROM messages
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	history := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

// RecentHistory returns the last windowSize messages for model context.
// Served from the in-memory cache; after a restart the cache is warmed from
// SQLite on first access.
func (s *SessionService) RecentHistory(sessionID string) ([]models.Message, error) {
	s.cacheMu.Lock()
	cached, ok := s.cache[sessionID]
	s.cacheMu.Unlock()

	if ok && len(cached) > 0 {
		out := make([]models.Message, len(cached))
		copy(out, cached)
		return out, nil
	}

	full, err := s.History(sessionID)
	if err != nil {
		return nil, err
	}
	if len(full) == 0 {
		return []models.Message{}, nil
	}

	window := full
	if len(window) > s.windowSize {
		window = window[len(window)-s.windowSize:]
	}

	s.cacheMu.Lock()
	s.cache[sessionID] = append([]models.Message(nil), window...)
	s.cacheMu.Unlock()

	out := make([]models.Message, len(window))
	copy(out, window)
	return out, nil
}

// AddMessage appends a message to a session. A first user message also sets
// the session title. Creates the session row if it went missing.
func (s *SessionService) AddMessage(sessionID string, msg models.Message) error {
	now := time.Now().UTC()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.SessionID = sessionID

	var exists string
	err := s.db.QueryRow(`SELECT session_id FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		log.Printf("⚠️  Session %s not found when adding message, creating it", sessionID)
		if _, err := s.db.Exec(
			`INSERT INTO sessions (session_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			sessionID, "New conversation", now, now,
		); err != nil {
			return fmt.Errorf("failed to recreate session: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	if msg.Role == models.RoleUser {
		var userCount int
		if err := s.db.QueryRow(
			`SELECT COUNT(*) FROM messages WHERE session_id = ? AND role = 'user'`, sessionID,
		).Scan(&userCount); err != nil {
			return fmt.Errorf("failed to count user messages: %w", err)
		}
		if userCount == 0 {
			title := truncateRunes(msg.Content, sessionTitleMaxLen)
			if _, err := s.db.Exec(
				`UPDATE sessions SET title = ? WHERE session_id = ?`, title, sessionID,
			); err != nil {
				return fmt.Errorf("failed to set session title: %w", err)
			}
		}
	}

	entitiesJSON, _ := json.Marshal(msg.Entities)
	urlsJSON, _ := json.Marshal(orEmptySlice(msg.SourceURLs))
	traceJSON, _ := json.Marshal(orEmptyTrace(msg.ToolTrace))

	res, err := s.db.Exec(`
		INSERT INTO messages (session_id, role, content, intent, entities, source_urls, tool_trace, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, msg.Role, msg.Content, msg.Intent,
		string(entitiesJSON), string(urlsJSON), string(traceJSON), msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}

	if _, err := s.db.Exec(
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`, msg.Timestamp, sessionID,
	); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	s.cacheMu.Lock()
	window := append(s.cache[sessionID], msg)
	if len(window) > s.windowSize {
		window = window[len(window)-s.windowSize:]
	}
	s.cache[sessionID] = window
	s.cacheMu.Unlock()

	log.Printf("💬 Added %s message to session %s", msg.Role, sessionID)
	return nil
}

// Clear removes a session's messages but keeps the session alive
func (s *SessionService) Clear(sessionID string) error {
	if _, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := s.db.Exec(
		`UPDATE sessions SET title = 'New conversation', updated_at = ? WHERE session_id = ?`,
		time.Now().UTC(), sessionID,
	); err != nil {
		return fmt.Errorf("failed to reset session title: %w", err)
	}

	s.cacheMu.Lock()
	delete(s.cache, sessionID)
	s.cacheMu.Unlock()

	log.Printf("🗑️  Cleared session %s", sessionID)
	return nil
}

// Delete removes a session entirely
func (s *SessionService) Delete(sessionID string) error {
	if _, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.cacheMu.Lock()
	delete(s.cache, sessionID)
	s.cacheMu.Unlock()
	s.locks.Delete(sessionID)

	log.Printf("🗑️  Deleted session %s", sessionID)
	return nil
}

// Count returns the number of sessions
func (s *SessionService) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// DeleteOlderThan removes sessions not updated since the cutoff.
// Returns the number of sessions removed.
func (s *SessionService) DeleteOlderThan(cutoff time.Time) (int, error) {
	rows, err := s.db.Query(`SELECT session_id FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.Delete(id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func scanMessage(rows *sql.Rows) (models.Message, error) {
	var msg models.Message
	var entitiesJSON, urlsJSON, traceJSON string
	err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Intent,
		&entitiesJSON, &urlsJSON, &traceJSON, &msg.Timestamp)
	if err != nil {
		return msg, fmt.Errorf("failed to scan message: %w", err)
	}
	_ = json.Unmarshal([]byte(entitiesJSON), &msg.Entities)
	_ = json.Unmarshal([]byte(urlsJSON), &msg.SourceURLs)
	_ = json.Unmarshal([]byte(traceJSON), &msg.ToolTrace)
	return msg, nil
}

// truncateRunes shortens s to at most max runes, never splitting a
// multi-byte character, and marks the cut with an ellipsis.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyTrace(t []models.ToolTraceRow) []models.ToolTraceRow {
	if t == nil {
		return []models.ToolTraceRow{}
	}
	return t
}
