package models

import "time"

// Feedback ratings accepted by the API
const (
	RatingThumbsUp   = "thumbs_up"
	RatingThumbsDown = "thumbs_down"
)

// FeedbackEvent represents a stored rating of an assistant reply
type FeedbackEvent struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id"`
	MessageContent string    `json:"message_content"`
	Rating         string    `json:"rating"` // "thumbs_up" or "thumbs_down"
	CreatedAt      time.Time `json:"created_at"`
}

// FeedbackRequest is the request body for POST /api/feedback
type FeedbackRequest struct {
	SessionID      string `json:"session_id"`
	MessageContent string `json:"message_content"`
	Rating         string `json:"rating"`
}

// FeedbackStats summarizes feedback volume for a session
type FeedbackStats struct {
	SessionID  string  `json:"session_id"`
	Total      int     `json:"total"`
	ThumbsUp   int     `json:"thumbs_up"`
	ThumbsDown int     `json:"thumbs_down"`
	Ratio      float64 `json:"ratio"` // thumbs_up / total, 0 when no events
}
