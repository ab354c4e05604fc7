package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultSite is used when a search names no site.
const DefaultSite = "stackoverflow"

const tokenBytes = 12

var (
	// ErrSessionNotFound is returned when an action refers to an unknown token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMalformedAction is returned for callback data that is not an action token.
	ErrMalformedAction = errors.New("malformed action")
)

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Action is a transition requested from an inline keyboard.
type Action string

const (
	AdvanceQuestion Action = "advance_question"
	AdvanceAnswer   Action = "advance_answer"
)

// Session tracks where a chat is in a search: which question page and which
// answer page of that question.
type Session struct {
	Token            string
	ChatID           int64
	Query            string
	Site             string
	QuestionCursor   int
	AnswerCursor     int
	QuestionID       *int64
	AnswerCount      *int
	HasMoreQuestions *bool
	LastActivity     time.Time
}

// ActionData returns the callback data that applies action to this session.
func (s *Session) ActionData(action Action) string {
	return string(action) + ":" + s.Token
}

// ParseAction splits callback data into an action and a session token.
func ParseAction(data string) (Action, string, error) {
	name, token, ok := strings.Cut(data, ":")
	if !ok || token == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedAction, data)
	}
	switch action := Action(name); action {
	case AdvanceQuestion, AdvanceAnswer:
		return action, token, nil
	default:
		return "", "", fmt.Errorf("%w: unknown action %q", ErrMalformedAction, name)
	}
}

// Store persists sessions by token. GetSession returns ErrSessionNotFound
// for unknown tokens.
type Store interface {
	GetSession(ctx context.Context, token string) (*Session, error)
	PutSession(ctx context.Context, s *Session) error
}

// Sweeper removes sessions idle since before a cutoff.
type Sweeper interface {
	DeleteSessionsInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// Manager creates sessions and applies transitions to them. Each lookup,
// mutation and write happens under one lock.
type Manager struct {
	store       Store
	mu          sync.Mutex
	now         func() time.Time
	random      io.Reader
	defaultSite string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the current time (for testing).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRandom overrides the token entropy source (for testing).
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		m.random = r
	}
}

// WithDefaultSite sets the site used when Create is given none.
func WithDefaultSite(site string) Option {
	return func(m *Manager) {
		m.defaultSite = site
	}
}

// NewManager creates a session manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		now:         time.Now,
		random:      rand.Reader,
		defaultSite: DefaultSite,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a session at the first question and first answer and saves it.
func (m *Manager) Create(ctx context.Context, chatID int64, query, site string) (*Session, error) {
	token, err := m.newToken()
	if err != nil {
		return nil, err
	}
	if site == "" {
		site = m.defaultSite
	}

	s := &Session{
		Token:          token,
		ChatID:         chatID,
		Query:          query,
		Site:           site,
		QuestionCursor: 1,
		AnswerCursor:   1,
		LastActivity:   m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.PutSession(ctx, s); err != nil {
		return nil, &StorageError{Op: "put", Err: err}
	}
	return s, nil
}

// Apply parses callback data and performs the requested transition.
func (m *Manager) Apply(ctx context.Context, data string) (Action, *Session, error) {
	action, token, err := ParseAction(data)
	if err != nil {
		return "", nil, err
	}

	var s *Session
	switch action {
	case AdvanceQuestion:
		s, err = m.AdvanceQuestion(ctx, token)
	case AdvanceAnswer:
		s, err = m.AdvanceAnswer(ctx, token)
	}
	return action, s, err
}

// AdvanceQuestion moves to the next question and back to its first answer.
func (m *Manager) AdvanceQuestion(ctx context.Context, token string) (*Session, error) {
	return m.update(ctx, token, func(s *Session) {
		s.QuestionCursor++
		s.AnswerCursor = 1
		s.QuestionID = nil
		s.AnswerCount = nil
	})
}

// AdvanceAnswer moves to the next answer of the current question.
func (m *Manager) AdvanceAnswer(ctx context.Context, token string) (*Session, error) {
	return m.update(ctx, token, func(s *Session) {
		s.AnswerCursor++
	})
}

// Save persists the fields recorded after a page was shown: QuestionID,
// AnswerCount and HasMoreQuestions. Cursors are owned by the Advance
// transitions, so when the stored cursors no longer match s a later press has
// moved on and the write is skipped.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.GetSession(ctx, s.Token)
	if errors.Is(err, ErrSessionNotFound) {
		return err
	}
	if err != nil {
		return &StorageError{Op: "get", Err: err}
	}

	if current.QuestionCursor != s.QuestionCursor || current.AnswerCursor != s.AnswerCursor {
		return nil
	}

	current.QuestionID = s.QuestionID
	current.AnswerCount = s.AnswerCount
	current.HasMoreQuestions = s.HasMoreQuestions
	if err := m.store.PutSession(ctx, current); err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

// Expire deletes sessions idle for longer than ttl. The store must implement
// Sweeper.
func (m *Manager) Expire(ctx context.Context, ttl time.Duration) (int64, error) {
	sweeper, ok := m.store.(Sweeper)
	if !ok {
		return 0, fmt.Errorf("session store %T cannot expire sessions", m.store)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := sweeper.DeleteSessionsInactiveSince(ctx, m.now().Add(-ttl))
	if err != nil {
		return 0, &StorageError{Op: "sweep", Err: err}
	}
	return n, nil
}

func (m *Manager) update(ctx context.Context, token string, mutate func(*Session)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.GetSession(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}

	mutate(s)
	s.LastActivity = m.now()

	if err := m.store.PutSession(ctx, s); err != nil {
		return nil, &StorageError{Op: "put", Err: err}
	}
	return s, nil
}

func (m *Manager) newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(m.random, b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
