package services

import (
	"path/filepath"
	"strings"
	"testing"

	"partsagent/internal/database"
	"partsagent/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFeedbackService_Record(t *testing.T) {
	svc := NewFeedbackService(newTestDB(t))

	if err := svc.Record("s1", "great answer", models.RatingThumbsUp); err != nil {
		t.Fatalf("Failed to record feedback: %v", err)
	}

	stats, err := svc.Stats("s1")
	if err != nil {
		t.Fatalf("Failed to load stats: %v", err)
	}
	if stats.Total != 1 || stats.ThumbsUp != 1 {
		t.Errorf("Expected 1 thumbs up, got %+v", stats)
	}
}

func TestFeedbackService_Events_InsertionOrder(t *testing.T) {
	svc := NewFeedbackService(newTestDB(t))

	recorded := []struct {
		content string
		rating  string
	}{
		{"first reply", models.RatingThumbsUp},
		{"second reply", models.RatingThumbsDown},
		{"third reply", models.RatingThumbsUp},
		{"fourth reply", models.RatingThumbsDown},
		{"fifth reply", models.RatingThumbsUp},
	}
	for _, r := range recorded {
		if err := svc.Record("s1", r.content, r.rating); err != nil {
			t.Fatalf("Failed to record feedback: %v", err)
		}
	}
	// Another session's events must not leak in
	if err := svc.Record("s2", "other session", models.RatingThumbsDown); err != nil {
		t.Fatalf("Failed to record feedback: %v", err)
	}

	events, err := svc.Events("s1")
	if err != nil {
		t.Fatalf("Failed to load events: %v", err)
	}
	if len(events) != len(recorded) {
		t.Fatalf("Expected %d events, got %d", len(recorded), len(events))
	}
	for i, e := range events {
		if e.MessageContent != recorded[i].content || e.Rating != recorded[i].rating {
			t.Errorf("Event %d: got (%q, %s), want (%q, %s)",
				i, e.MessageContent, e.Rating, recorded[i].content, recorded[i].rating)
		}
		if e.SessionID != "s1" {
			t.Errorf("Event %d: unexpected session %q", i, e.SessionID)
		}
		if i > 0 && e.ID <= events[i-1].ID {
			t.Errorf("Event %d: ID %d not after %d", i, e.ID, events[i-1].ID)
		}
	}

	stats, err := svc.Stats("s1")
	if err != nil {
		t.Fatalf("Failed to load stats: %v", err)
	}
	if stats.Total != 5 || stats.ThumbsUp != 3 || stats.ThumbsDown != 2 {
		t.Errorf("Stats disagree with the log: %+v", stats)
	}
}

func TestFeedbackService_Record_InvalidRating(t *testing.T) {
	svc := NewFeedbackService(newTestDB(t))

	if err := svc.Record("s1", "meh", "three_stars"); err == nil {
		t.Error("Expected an error for an unknown rating")
	}
}

func TestFeedbackService_Analyze_BelowThreshold(t *testing.T) {
	svc := NewFeedbackService(newTestDB(t))

	if err := svc.Record("s1", "bad", models.RatingThumbsDown); err != nil {
		t.Fatalf("Failed to record feedback: %v", err)
	}

	insights := svc.Analyze("s1")
	if insights.HasInsights {
		t.Error("Expected no insights below the event threshold")
	}
}

func TestFeedbackService_Analyze_NegativeRatio(t *testing.T) {
	svc := NewFeedbackService(newTestDB(t))

	ratings := []struct{ content, rating string }{
		{"this is wrong, the part number is incorrect", models.RatingThumbsDown},
		{"answer was incomplete, need more detail", models.RatingThumbsDown},
		{"thanks", models.RatingThumbsUp},
	}
	for _, r := range ratings {
		if err := svc.Record("s1", r.content, r.rating); err != nil {
			t.Fatalf("Failed to record feedback: %v", err)
		}
	}

	insights := svc.Analyze("s1")
	if !insights.HasInsights {
		t.Fatal("Expected insights above the event threshold")
	}
	if insights.ThumbsDown != 2 || insights.ThumbsUp != 1 {
		t.Errorf("Unexpected counts: %+v", insights)
	}
	if insights.FeedbackRatio >= 0.5 {
		t.Errorf("Expected ratio below 0.5, got %f", insights.FeedbackRatio)
	}
	if len(insights.Enhancements) == 0 {
		t.Fatal("Expected enhancement fragments for a negative session")
	}

	joined := strings.Join(insights.Enhancements, "\n")
	if !strings.Contains(joined, "Double-check") {
		t.Error("Expected accuracy fragment for 'wrong/incorrect' feedback")
	}
	if !strings.Contains(joined, "comprehensive") {
		t.Error("Expected completeness fragment for 'incomplete/detail' feedback")
	}
}

func TestFeedbackService_Analyze_CacheInvalidatedOnRecord(t *testing.T) {
	svc := NewFeedbackService(newTestDB(t))

	if svc.Analyze("s1").HasInsights {
		t.Fatal("Expected empty insights for a fresh session")
	}

	if err := svc.Record("s1", "wrong", models.RatingThumbsDown); err != nil {
		t.Fatalf("Failed to record feedback: %v", err)
	}
	if err := svc.Record("s1", "also wrong", models.RatingThumbsDown); err != nil {
		t.Fatalf("Failed to record feedback: %v", err)
	}

	if !svc.Analyze("s1").HasInsights {
		t.Error("Expected fresh insights after new feedback, not the cached empty set")
	}
}

func TestEnhancePrompt(t *testing.T) {
	base := "You are a parts assistant."

	unchanged := EnhancePrompt(base, &FeedbackInsights{})
	if unchanged != base {
		t.Error("Expected prompt to pass through without insights")
	}

	enhanced := EnhancePrompt(base, &FeedbackInsights{
		HasInsights:  true,
		Enhancements: []string{"Be more thorough."},
	})
	if !strings.Contains(enhanced, "=== FEEDBACK-BASED IMPROVEMENTS ===") {
		t.Error("Expected the improvements section header")
	}
	if !strings.Contains(enhanced, "Be more thorough.") {
		t.Error("Expected the fragment to appear in the prompt")
	}
	if !strings.HasPrefix(enhanced, base) {
		t.Error("Expected the base prompt to lead the enhanced prompt")
	}
}
