package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// Session is a stored search pagination session.
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

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL,
		query TEXT NOT NULL,
		site TEXT NOT NULL,
		question_cursor INTEGER NOT NULL DEFAULT 1,
		answer_cursor INTEGER NOT NULL DEFAULT 1,
		question_id INTEGER,
		answer_count INTEGER,
		has_more_questions BOOLEAN,
		last_activity DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// PutSession inserts or replaces a session.
func (db *DB) PutSession(ctx context.Context, s *Session) error {
	query := `
	INSERT INTO sessions (token, chat_id, query, site, question_cursor, answer_cursor,
		question_id, answer_count, has_more_questions, last_activity)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(token) DO UPDATE SET
		chat_id = excluded.chat_id,
		query = excluded.query,
		site = excluded.site,
		question_cursor = excluded.question_cursor,
		answer_cursor = excluded.answer_cursor,
		question_id = excluded.question_id,
		answer_count = excluded.answer_count,
		has_more_questions = excluded.has_more_questions,
		last_activity = excluded.last_activity
	`

	_, err := db.conn.ExecContext(ctx, query,
		s.Token,
		s.ChatID,
		s.Query,
		s.Site,
		s.QuestionCursor,
		s.AnswerCursor,
		s.QuestionID,
		s.AnswerCount,
		s.HasMoreQuestions,
		s.LastActivity.UTC(),
	)
	return err
}

// GetSession retrieves a session by token.
func (db *DB) GetSession(ctx context.Context, token string) (*Session, error) {
	query := `
	SELECT token, chat_id, query, site, question_cursor, answer_cursor,
		question_id, answer_count, has_more_questions, last_activity
	FROM sessions WHERE token = ?
	`

	s := &Session{}
	var questionID, answerCount sql.NullInt64
	var hasMore sql.NullBool

	err := db.conn.QueryRowContext(ctx, query, token).Scan(
		&s.Token,
		&s.ChatID,
		&s.Query,
		&s.Site,
		&s.QuestionCursor,
		&s.AnswerCursor,
		&questionID,
		&answerCount,
		&hasMore,
		&s.LastActivity,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if questionID.Valid {
		s.QuestionID = &questionID.Int64
	}
	if answerCount.Valid {
		n := int(answerCount.Int64)
		s.AnswerCount = &n
	}
	if hasMore.Valid {
		s.HasMoreQuestions = &hasMore.Bool
	}

	return s, nil
}

// DeleteSessionsInactiveSince removes sessions whose last activity is before
// cutoff and returns how many were removed.
func (db *DB) DeleteSessionsInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE last_activity < ?`
	res, err := db.conn.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSessions returns the number of stored sessions.
func (db *DB) CountSessions(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM sessions`
	var count int
	err := db.conn.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
