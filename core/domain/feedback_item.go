package domain

import "time"

type FeedbackStatus string

const (
	FeedbackPending   FeedbackStatus = "pending"
	FeedbackProcessed FeedbackStatus = "processed"
)

// Feedback is one ingested line of customer text.
type Feedback struct {
	ID         int64          `json:"id"`
	Content    string         `json:"content"`
	Status     FeedbackStatus `json:"status"`
	ProblemID  *int64         `json:"problem_id,omitempty"`
	Sentiment  Sentiment      `json:"sentiment,omitempty"`
	Entities   []string       `json:"entities,omitempty"`
	CreateTime time.Time      `json:"create_time"`
	UpdateTime time.Time      `json:"update_time"`
}

// NewFeedback returns a pending feedback row for content.
func NewFeedback(content string, now time.Time) *Feedback {
	return &Feedback{
		Content:    content,
		Status:     FeedbackPending,
		CreateTime: now,
		UpdateTime: now,
	}
}
