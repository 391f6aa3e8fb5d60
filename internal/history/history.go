// Package history is the append-only log of raw submissions, one row per POST.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/OFFIS-RIT/dematel/internal/util"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
)

var ErrNotFound = errors.New("history entry not found")

const defaultListLimit = 100

type Entry struct {
	ID         int64     `json:"id"`
	SurveyID   string    `json:"surveyId"`
	Sheet      string    `json:"sheet"`
	Payload    string    `json:"json"`
	ReceivedAt time.Time `json:"timestamp"`
}

type dbConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	db dbConn
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Append stores payload as received for surveyID and returns the new entry.
func (s *Store) Append(ctx context.Context, surveyID, sheet, payload string, receivedAt time.Time) (Entry, error) {
	e := Entry{
		SurveyID:   surveyID,
		Sheet:      sheet,
		Payload:    util.SanitizePostgresText(payload),
		ReceivedAt: receivedAt,
	}
	err := s.db.QueryRow(ctx, appendSQL, e.SurveyID, e.Sheet, e.Payload, e.ReceivedAt).Scan(&e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("append history for %s: %w", surveyID, err)
	}
	return e, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	var e Entry
	err := s.db.QueryRow(ctx, getSQL, id).Scan(&e.ID, &e.SurveyID, &e.Sheet, &e.Payload, &e.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get history %d: %w", id, err)
	}
	return e, nil
}

// ListBySurvey returns the newest entries of surveyID first. A limit <= 0 selects
// the default page size.
func (s *Store) ListBySurvey(ctx context.Context, surveyID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.list(ctx, surveyID, listSQL, surveyID, limit)
}

// ListAllBySurvey returns every entry of surveyID, oldest first.
func (s *Store) ListAllBySurvey(ctx context.Context, surveyID string) ([]Entry, error) {
	return s.list(ctx, surveyID, listAllSQL, surveyID)
}

func (s *Store) list(ctx context.Context, surveyID, sql string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", surveyID, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.SurveyID, &e.Sheet, &e.Payload, &e.ReceivedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history for %s: %w", surveyID, err)
	}
	return entries, nil
}

// Migrate applies the SQL migrations in dir to databaseURL.
func Migrate(databaseURL, dir string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("[History] Schema up to date", "version", version, "dirty", dirty)
	return nil
}

const appendSQL = `
INSERT INTO submission_history (survey_id, sheet, payload, received_at)
VALUES ($1, $2, $3, $4)
RETURNING id;
`

const getSQL = `
SELECT id, survey_id, sheet, payload, received_at
FROM submission_history
WHERE id = $1;
`

const listSQL = `
SELECT id, survey_id, sheet, payload, received_at
FROM submission_history
WHERE survey_id = $1
ORDER BY received_at DESC, id DESC
LIMIT $2;
`

const listAllSQL = `
SELECT id, survey_id, sheet, payload, received_at
FROM submission_history
WHERE survey_id = $1
ORDER BY received_at, id;
`
