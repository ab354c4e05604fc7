package render

import (
	"errors"
	"fmt"
)

// ErrContractViolation marks input the caller was required to provide correctly.
var ErrContractViolation = errors.New("contract violation")

// PostKind distinguishes questions from answers.
type PostKind int

const (
	Question PostKind = iota + 1
	Answer
)

func (k PostKind) String() string {
	switch k {
	case Question:
		return "question"
	case Answer:
		return "answer"
	default:
		return fmt.Sprintf("PostKind(%d)", int(k))
	}
}

// Owner is the author of a post. Link is empty when the profile is unknown.
type Owner struct {
	DisplayName string
	Link        string
}

// Post is a question or answer as returned by the Q&A service.
// Title, owner name and tags arrive HTML-encoded and are used as-is.
type Post struct {
	Kind          PostKind
	ID            int64
	Title         string
	Link          string
	Body          string
	Tags          []string // questions only
	Owner         *Owner
	CreationDate  int64 // unix seconds
	IsAccepted    bool  // answers only
	UpVoteCount   int
	DownVoteCount int
	FavoriteCount *int // questions only, nil when the filter omits it
	AnswerCount   int  // questions only
}

// Validate reports missing required fields.
func (p *Post) Validate() error {
	if p.Kind != Question && p.Kind != Answer {
		return fmt.Errorf("%w: unknown post kind %v", ErrContractViolation, p.Kind)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: %s %d has no title", ErrContractViolation, p.Kind, p.ID)
	}
	if p.Link == "" {
		return fmt.Errorf("%w: %s %d has no link", ErrContractViolation, p.Kind, p.ID)
	}
	if p.CreationDate == 0 {
		return fmt.Errorf("%w: %s %d has no creation date", ErrContractViolation, p.Kind, p.ID)
	}
	if p.Kind == Question && p.Tags == nil {
		return fmt.Errorf("%w: question %d has no tags", ErrContractViolation, p.ID)
	}
	return nil
}
