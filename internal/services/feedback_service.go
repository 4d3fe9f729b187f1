package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"partsagent/internal/database"
	"partsagent/internal/models"
)

// Minimum number of feedback events before insights are generated
const minFeedbackThreshold = 2

// FeedbackInsights summarizes session feedback and carries the prompt
// fragments derived from it
type FeedbackInsights struct {
	HasInsights   bool     `json:"has_insights"`
	FeedbackRatio float64  `json:"feedback_ratio"`
	ThumbsUp      int      `json:"thumbs_up"`
	ThumbsDown    int      `json:"thumbs_down"`
	Total         int      `json:"total"`
	Enhancements  []string `json:"enhancements"`
}

// FeedbackService records ratings and turns them into prompt adaptations
type FeedbackService struct {
	db            *database.DB
	insightsCache *cache.Cache // session_id -> *FeedbackInsights
}

// NewFeedbackService creates the feedback service
func NewFeedbackService(db *database.DB) *FeedbackService {
	return &FeedbackService{
		db:            db,
		insightsCache: cache.New(10*time.Minute, 5*time.Minute),
	}
}

// Record stores a rating. The session's cached insights are invalidated so
// the next turn reflects the new event.
func (f *FeedbackService) Record(sessionID, messageContent, rating string) error {
	if rating != models.RatingThumbsUp && rating != models.RatingThumbsDown {
		return fmt.Errorf("invalid rating %q: must be %q or %q",
			rating, models.RatingThumbsUp, models.RatingThumbsDown)
	}

	_, err := f.db.Exec(`
		INSERT INTO feedback (session_id, message_content, rating, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, messageContent, rating, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	f.insightsCache.Delete(sessionID)

	log.Printf("👍 Feedback recorded: %s for session %s", rating, sessionID)
	return nil
}

// Stats returns feedback counts. An empty sessionID aggregates all sessions.
func (f *FeedbackService) Stats(sessionID string) (*models.FeedbackStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN rating = 'thumbs_up' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rating = 'thumbs_down' THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM feedback`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	stats := &models.FeedbackStats{SessionID: sessionID}
	if err := f.db.QueryRow(query, args...).Scan(&stats.ThumbsUp, &stats.ThumbsDown, &stats.Total); err != nil {
		return nil, fmt.Errorf("failed to load feedback stats: %w", err)
	}
	if stats.Total > 0 {
		stats.Ratio = float64(stats.ThumbsUp) / float64(stats.Total)
	}
	return stats, nil
}

// Events returns a session's full feedback log in insertion order
func (f *FeedbackService) Events(sessionID string) ([]models.FeedbackEvent, error) {
	rows, err := f.db.Query(`
		SELECT id, session_id, message_content, rating, created_at
		FROM feedback
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback events: %w", err)
	}
	defer rows.Close()

	var events []models.FeedbackEvent
	for rows.Next() {
		var e models.FeedbackEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.MessageContent, &e.Rating, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// NegativeMessages returns the most recent thumbs-down message contents
func (f *FeedbackService) NegativeMessages(sessionID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := f.db.Query(`
		SELECT message_content
		FROM feedback
		WHERE session_id = ? AND rating = 'thumbs_down'
		ORDER BY id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load negative feedback: %w", err)
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Analyze computes feedback insights for a session. Below the event
// threshold it returns an empty insight set. Results are cached until the
// next recorded event.
func (f *FeedbackService) Analyze(sessionID string) *FeedbackInsights {
	if cached, found := f.insightsCache.Get(sessionID); found {
		return cached.(*FeedbackInsights)
	}

	insights := f.analyze(sessionID)
	f.insightsCache.Set(sessionID, insights, cache.DefaultExpiration)
	return insights
}

func (f *FeedbackService) analyze(sessionID string) *FeedbackInsights {
	stats, err := f.Stats(sessionID)
	if err != nil {
		log.Printf("⚠️  [FEEDBACK] Failed to analyze session %s: %v", sessionID, err)
		return &FeedbackInsights{}
	}

	if stats.Total < minFeedbackThreshold {
		return &FeedbackInsights{}
	}

	negatives, err := f.NegativeMessages(sessionID, 10)
	if err != nil {
		log.Printf("⚠️  [FEEDBACK] Failed to load negative feedback for %s: %v", sessionID, err)
	}

	return &FeedbackInsights{
		HasInsights:   true,
		FeedbackRatio: stats.Ratio,
		ThumbsUp:      stats.ThumbsUp,
		ThumbsDown:    stats.ThumbsDown,
		Total:         stats.Total,
		Enhancements:  generateEnhancements(negatives, stats.Ratio),
	}
}

// generateEnhancements derives prompt fragments from rated message text.
// One general fragment when the positive ratio drops below half, plus one
// per keyword group observed in the thumbs-down messages.
func generateEnhancements(negatives []string, positiveRatio float64) []string {
	var enhancements []string

	if positiveRatio < 0.5 {
		enhancements = append(enhancements,
			"IMPORTANT: Recent feedback indicates responses need improvement. "+
				"Be more thorough, provide complete information, and avoid asking for details you can extract or scrape yourself.")
	}

	if len(negatives) == 0 {
		return enhancements
	}

	combined := strings.ToLower(strings.Join(negatives, " "))

	if containsAny(combined, "need", "require", "ask", "provide", "missing") {
		enhancements = append(enhancements,
			"CRITICAL: Do NOT ask users for information you can obtain yourself. "+
				"Always extract part numbers and model numbers from queries and scrape immediately. "+
				"Never say 'I need' or 'Please provide' - just do it.")
	}

	if containsAny(combined, "incomplete", "partial", "more", "detail") {
		enhancements = append(enhancements,
			"Provide complete, comprehensive answers. Include all relevant details: "+
				"part numbers, prices, compatibility, installation instructions, and specifications.")
	}

	if containsAny(combined, "wrong", "incorrect", "error", "mistake") {
		enhancements = append(enhancements,
			"Double-check all information before responding. Verify part numbers and model numbers are correct. "+
				"Ensure compatibility information is accurate.")
	}

	if containsAny(combined, "unclear", "confusing", "understand") {
		enhancements = append(enhancements,
			"Be clear and concise in responses. Use simple language and structure information clearly. "+
				"Break down complex instructions into step-by-step format.")
	}

	return enhancements
}

// EnhancePrompt appends feedback-derived fragments to the base system prompt
func EnhancePrompt(basePrompt string, insights *FeedbackInsights) string {
	if insights == nil || !insights.HasInsights || len(insights.Enhancements) == 0 {
		return basePrompt
	}

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n=== FEEDBACK-BASED IMPROVEMENTS ===\n")
	for _, e := range insights.Enhancements {
		sb.WriteString("- ")
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	sb.WriteString("\nApply these improvements to your response.\n")

	log.Printf("📊 Enhanced prompt with %d feedback-based improvements", len(insights.Enhancements))
	return sb.String()
}
