// Package history stores finished games in the game_results table and
// serves them back for the scoreboard API.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a result ID does not exist.
var ErrNotFound = errors.New("history: result not found")

// Result is one finished game.
type Result struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	DisplayName  string    `json:"display_name"`
	Reason       string    `json:"reason"`
	FinalHP      int       `json:"final_hp"`
	RoundsPlayed int       `json:"rounds_played"`
	Correct      int       `json:"correct"`
	Incorrect    int       `json:"incorrect"`
	LastSequence int       `json:"last_sequence"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Filter controls which results to return.
type Filter struct {
	DeviceID string // optional
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult contains one page of results.
type ListResult struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository defines the operations on stored results.
type Repository interface {
	Create(ctx context.Context, r *Result) error
	Get(ctx context.Context, id string) (*Result, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository reads and writes game_results.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

const selectColumns = `id, device_id, display_name, reason, final_hp, rounds_played,
	correct, incorrect, last_sequence, finished_at`

// Create inserts a result. ID and FinishedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, res *Result) error {
	if res.ID == "" {
		res.ID = "game-" + uuid.NewString()
	}
	if res.FinishedAt.IsZero() {
		res.FinishedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_results (`+selectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.DeviceID, res.DisplayName, res.Reason,
		res.FinalHP, res.RoundsPlayed, res.Correct, res.Incorrect, res.LastSequence,
		res.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting game result: %w", err)
	}
	return nil
}

// Get returns a single result by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Result, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM game_results WHERE id = ?`, id)

	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// List returns results matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM game_results " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting game results: %w", err)
	}

	query := "SELECT " + selectColumns + " FROM game_results " + where +
		" ORDER BY finished_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying game results: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating game results: %w", err)
	}

	return &ListResult{
		Results: results,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (*Result, error) {
	var res Result
	var finishedAt string

	if err := s.Scan(&res.ID, &res.DeviceID, &res.DisplayName, &res.Reason,
		&res.FinalHP, &res.RoundsPlayed, &res.Correct, &res.Incorrect, &res.LastSequence,
		&finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning game result: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, finishedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing finished_at %q: %w", finishedAt, err)
	}
	res.FinishedAt = t

	return &res, nil
}
