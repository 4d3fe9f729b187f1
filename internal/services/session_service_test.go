package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"partsagent/internal/models"
)

func TestSessionService_CreateAndGet(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 5)

	sessionID, err := svc.Create()
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if sessionID == "" {
		t.Fatal("Expected a session ID")
	}

	session, err := svc.Get(sessionID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if session == nil {
		t.Fatal("Expected the session to exist")
	}
	if session.Title != "New conversation" {
		t.Errorf("Expected default title, got %q", session.Title)
	}
}

func TestSessionService_Get_Missing(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 5)

	session, err := svc.Get("does-not-exist")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if session != nil {
		t.Error("Expected nil for a missing session")
	}
}

func TestSessionService_TitleFromFirstUserMessage(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 5)

	sessionID, _ := svc.Create()
	long := strings.Repeat("how do I install the door bin ", 4)
	if err := svc.AddMessage(sessionID, models.Message{Role: models.RoleUser, Content: long}); err != nil {
		t.Fatalf("Failed to add message: %v", err)
	}

	session, _ := svc.Get(sessionID)
	if !strings.HasSuffix(session.Title, "...") {
		t.Errorf("Expected truncated title ending in ..., got %q", session.Title)
	}
	if len(session.Title) != 53 {
		t.Errorf("Expected 50 chars plus ellipsis, got %d", len(session.Title))
	}

	// A second user message must not retitle the session
	if err := svc.AddMessage(sessionID, models.Message{Role: models.RoleUser, Content: "short"}); err != nil {
		t.Fatalf("Failed to add message: %v", err)
	}
	again, _ := svc.Get(sessionID)
	if again.Title != session.Title {
		t.Errorf("Title changed on second message: %q", again.Title)
	}
}

func TestSessionService_TitleTruncationKeepsRunesWhole(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 5)

	sessionID, _ := svc.Create()
	long := strings.Repeat("réfrigérateur ", 8)
	if err := svc.AddMessage(sessionID, models.Message{Role: models.RoleUser, Content: long}); err != nil {
		t.Fatalf("Failed to add message: %v", err)
	}

	session, _ := svc.Get(sessionID)
	if !utf8.ValidString(session.Title) {
		t.Errorf("Title is not valid UTF-8: %q", session.Title)
	}
	if !strings.HasSuffix(session.Title, "...") {
		t.Errorf("Expected truncated title ending in ..., got %q", session.Title)
	}
	if got := utf8.RuneCountInString(session.Title); got != 53 {
		t.Errorf("Expected 50 runes plus ellipsis, got %d", got)
	}
}

func TestSessionService_RecentHistoryWindow(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 3)

	sessionID, _ := svc.Create()
	for i := 0; i < 5; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if err := svc.AddMessage(sessionID, models.Message{Role: role, Content: strings.Repeat("x", i+1)}); err != nil {
			t.Fatalf("Failed to add message %d: %v", i, err)
		}
	}

	recent, err := svc.RecentHistory(sessionID)
	if err != nil {
		t.Fatalf("Failed to load recent history: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected window of 3, got %d", len(recent))
	}
	if recent[2].Content != "xxxxx" {
		t.Errorf("Expected the newest message last, got %q", recent[2].Content)
	}

	full, err := svc.History(sessionID)
	if err != nil {
		t.Fatalf("Failed to load full history: %v", err)
	}
	if len(full) != 5 {
		t.Errorf("Expected full history of 5, got %d", len(full))
	}
}

func TestSessionService_RecentHistory_WarmsFromStore(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, 5)

	sessionID, _ := svc.Create()
	if err := svc.AddMessage(sessionID, models.Message{Role: models.RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("Failed to add message: %v", err)
	}

	// Fresh service over the same store simulates a process restart
	restarted := NewSessionService(db, 5)
	recent, err := restarted.RecentHistory(sessionID)
	if err != nil {
		t.Fatalf("Failed to load recent history: %v", err)
	}
	if len(recent) != 1 || recent[0].Content != "hello" {
		t.Errorf("Expected the window to warm from the store, got %v", recent)
	}
}

func TestSessionService_MessageRoundTrip(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 5)

	sessionID, _ := svc.Create()
	msg := models.Message{
		Role:    models.RoleAssistant,
		Content: "The door bin PS11752778 fits.",
		Intent:  models.IntentCompatibility,
		Entities: models.QueryEntities{
			PartNumbers:  []string{"PS11752778"},
			ModelNumbers: []string{"WDT780SAEM1"},
		},
		SourceURLs: []string{"https://www.partselect.com/PS11752778.htm"},
		ToolTrace: []models.ToolTraceRow{
			{ID: "call_1", Name: "scrape_product", Args: `{"part_number":"PS11752778"}`, Round: 1, Status: "completed", Duration: 1200},
		},
	}
	if err := svc.AddMessage(sessionID, msg); err != nil {
		t.Fatalf("Failed to add message: %v", err)
	}

	history, err := svc.History(sessionID)
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(history))
	}

	got := history[0]
	if got.Entities.PartNumbers[0] != "PS11752778" {
		t.Errorf("Entities lost in round trip: %+v", got.Entities)
	}
	if len(got.SourceURLs) != 1 {
		t.Errorf("Source URLs lost in round trip: %v", got.SourceURLs)
	}
	if len(got.ToolTrace) != 1 || got.ToolTrace[0].Name != "scrape_product" {
		t.Errorf("Tool trace lost in round trip: %v", got.ToolTrace)
	}
}

func TestSessionService_Clear(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 5)

	sessionID, _ := svc.Create()
	svc.AddMessage(sessionID, models.Message{Role: models.RoleUser, Content: "hello"})

	if err := svc.Clear(sessionID); err != nil {
		t.Fatalf("Failed to clear session: %v", err)
	}

	history, _ := svc.History(sessionID)
	if len(history) != 0 {
		t.Errorf("Expected no messages after clear, got %d", len(history))
	}
	session, _ := svc.Get(sessionID)
	if session == nil {
		t.Fatal("Expected the session to survive a clear")
	}
	if session.Title != "New conversation" {
		t.Errorf("Expected title reset, got %q", session.Title)
	}
}

func TestSessionService_Delete(t *testing.T) {
	svc := NewSessionService(newTestDB(t), 5)

	sessionID, _ := svc.Create()
	if err := svc.Delete(sessionID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	session, _ := svc.Get(sessionID)
	if session != nil {
		t.Error("Expected the session to be gone")
	}
}

func TestSessionService_DeleteOlderThan(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, 5)

	oldID, _ := svc.Create()
	freshID, _ := svc.Create()

	// Age the first session behind the cutoff
	stale := time.Now().UTC().AddDate(0, 0, -40)
	if _, err := db.Exec(`UPDATE sessions SET updated_at = ? WHERE session_id = ?`, stale, oldID); err != nil {
		t.Fatalf("Failed to age session: %v", err)
	}

	deleted, err := svc.DeleteOlderThan(time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Failed to delete old sessions: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted session, got %d", deleted)
	}

	if s, _ := svc.Get(oldID); s != nil {
		t.Error("Expected the stale session to be gone")
	}
	if s, _ := svc.Get(freshID); s == nil {
		t.Error("Expected the fresh session to survive")
	}
}
