package domain

import "time"

type ProblemStatus string

const (
	ProblemPending    ProblemStatus = "pending"
	ProblemProcessing ProblemStatus = "processing"
	ProblemResolved   ProblemStatus = "resolved"
	ProblemClosed     ProblemStatus = "closed"
)

// IsValid reports whether s is an accepted problem status.
func (s ProblemStatus) IsValid() bool {
	switch s {
	case ProblemPending, ProblemProcessing, ProblemResolved, ProblemClosed:
		return true
	}
	return false
}

// IsOpen reports whether new feedback may still be merged into the problem.
func (s ProblemStatus) IsOpen() bool {
	return s == ProblemPending || s == ProblemProcessing
}

// Problem is a cluster of feedback describing the same issue.
// FeedbackCount always equals the number of feedback rows linked to it.
type Problem struct {
	ID            int64         `json:"id"`
	Summary       string        `json:"summary"`
	Description   string        `json:"description"`
	Category      Category      `json:"category"`
	Severity      Severity      `json:"severity"`
	FeedbackCount int           `json:"feedback_count"`
	Status        ProblemStatus `json:"status"`
	CreateTime    time.Time     `json:"create_time"`
	UpdateTime    time.Time     `json:"update_time"`
}

// NewProblem seeds a cluster from its first feedback.
func NewProblem(raw string, c *Classification, now time.Time) *Problem {
	return &Problem{
		Summary:       c.Summary,
		Description:   raw,
		Category:      c.Category,
		Severity:      c.Severity,
		FeedbackCount: 1,
		Status:        ProblemPending,
		CreateTime:    now,
		UpdateTime:    now,
	}
}

// FeedbackExample is the verbatim text of one feedback attached to a problem.
type FeedbackExample struct {
	ID         int64     `json:"id"`
	ProblemID  int64     `json:"problem_id"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
}

// ProblemFilter narrows problem listings. Zero values mean no filter.
type ProblemFilter struct {
	Keyword  string
	Category Category
	Severity Severity
	Status   ProblemStatus
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to sane bounds.
func (f *ProblemFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// Offset returns the row offset of the requested page.
func (f ProblemFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// DashboardStats are the headline counters of the dashboard.
type DashboardStats struct {
	TotalFeedbacks   int `json:"totalFeedbacks"`
	TotalProblems    int `json:"totalProblems"`
	PendingProblems  int `json:"pendingProblems"`
	ResolvedProblems int `json:"resolvedProblems"`
}

// ProblemDetail is a problem together with example texts.
type ProblemDetail struct {
	*Problem
	Examples []string `json:"examples"`
}
