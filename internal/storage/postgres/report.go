package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/modloader/internal/startup"
)

// ErrReportNotFound is returned when no stored report matches a lookup.
var ErrReportNotFound = errors.New("report not found")

// ErrReportExists is returned when saving a report whose run id is already stored.
var ErrReportExists = errors.New("report already exists")

// StepError is a step failure read back from storage. Only the message
// survives a round trip.
type StepError struct {
	Message string
}

func (e *StepError) Error() string { return e.Message }

// ReportRepository persists startup reports.
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a ReportRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save stores report and all of its steps in one transaction.
//
// Precondition: report must be non-nil with a non-nil RunID.
// Postcondition: Either the run and every step are stored, or nothing is.
// Returns ErrReportExists if the run id is already stored.
func (r *ReportRepository) Save(ctx context.Context, report *startup.Report) error {
	if report == nil || report.RunID == uuid.Nil {
		return fmt.Errorf("saving report: missing run id")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO load_runs (id, started_at, finished_at, assets, failures)
		 VALUES ($1, $2, $3, $4, $5)`,
		report.RunID, report.Started, report.Finished, report.Assets, report.Failures(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrReportExists
		}
		return fmt.Errorf("inserting run: %w", err)
	}

	rows := make([][]any, len(report.Steps))
	for i, s := range report.Steps {
		var msg *string
		if s.Err != nil {
			m := s.Err.Error()
			msg = &m
		}
		rows[i] = []any{report.RunID, i, s.Name, s.ModID, s.Duration.Microseconds(), msg}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"load_steps"},
		[]string{"run_id", "seq", "name", "mod_id", "duration_us", "error"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting steps: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing report: %w", err)
	}
	return nil
}

// Get returns the report stored under id.
//
// Postcondition: Returns ErrReportNotFound if no run has that id.
func (r *ReportRepository) Get(ctx context.Context, id uuid.UUID) (*startup.Report, error) {
	var report startup.Report
	err := r.db.QueryRow(ctx,
		`SELECT id, started_at, finished_at, assets FROM load_runs WHERE id = $1`, id,
	).Scan(&report.RunID, &report.Started, &report.Finished, &report.Assets)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	if err := r.loadSteps(ctx, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Latest returns the most recently started report.
//
// Postcondition: Returns ErrReportNotFound if nothing has been saved.
func (r *ReportRepository) Latest(ctx context.Context) (*startup.Report, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM load_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *ReportRepository) loadSteps(ctx context.Context, report *startup.Report) error {
	rows, err := r.db.Query(ctx,
		`SELECT name, mod_id, duration_us, error FROM load_steps
		 WHERE run_id = $1 ORDER BY seq`, report.RunID,
	)
	if err != nil {
		return fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s   startup.StepResult
			us  int64
			msg *string
		)
		if err := rows.Scan(&s.Name, &s.ModID, &us, &msg); err != nil {
			return fmt.Errorf("scanning step: %w", err)
		}
		s.Duration = time.Duration(us) * time.Microsecond
		if msg != nil {
			s.Err = &StepError{Message: *msg}
		}
		report.Steps = append(report.Steps, s)
	}
	return rows.Err()
}

func isDuplicateKeyError(err error) bool {
	// SQLSTATE 23505 is unique_violation.
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
