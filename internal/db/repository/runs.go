// Package repository holds the SQL-backed stores for the run-history
// database.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"groupsync/internal/domain"
)

// RunRepo archives sync reports in SQLite. Reports are written through the
// write pool; listings and lookups go through the read pool.
type RunRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

var _ domain.RunStore = (*RunRepo)(nil)

func NewRunRepo(writeDB, readDB *sql.DB) *RunRepo {
	return &RunRepo{writeDB: writeDB, readDB: readDB}
}

// SaveReport inserts the run and its per-member results in one transaction.
func (r *RunRepo) SaveReport(ctx context.Context, report *domain.SyncReport) error {
	tx, err := r.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_runs
		 (run_id, target_group, dry_run, clear_first, added, already_member, removed, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.TargetGroup, report.DryRun, report.ClearFirst,
		report.Added, report.AlreadyMember, report.Removed, report.Failed,
		report.StartedAt.UTC(), report.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert sync run %s: %w", report.RunID, err)
	}

	for _, m := range report.Members {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_run_members (run_id, principal_id, display_name, operation, outcome, error)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			report.RunID, m.PrincipalID, m.DisplayName, string(m.Operation), string(m.Outcome), m.Error)
		if err != nil {
			return fmt.Errorf("insert member result for run %s: %w", report.RunID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns archived runs, newest first.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.readDB.QueryContext(ctx,
		`SELECT run_id, target_group, dry_run, added, already_member, removed, failed, started_at, finished_at
		 FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.RunSummary
	for rows.Next() {
		var s domain.RunSummary
		if err := rows.Scan(&s.RunID, &s.TargetGroup, &s.DryRun,
			&s.Added, &s.AlreadyMember, &s.Removed, &s.Failed,
			&s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRun reads one archived run with its per-member results.
func (r *RunRepo) GetRun(ctx context.Context, runID string) (*domain.SyncReport, error) {
	var report domain.SyncReport
	err := r.readDB.QueryRowContext(ctx,
		`SELECT run_id, target_group, dry_run, clear_first, added, already_member, removed, failed, started_at, finished_at
		 FROM sync_runs WHERE run_id = ?`, runID).
		Scan(&report.RunID, &report.TargetGroup, &report.DryRun, &report.ClearFirst,
			&report.Added, &report.AlreadyMember, &report.Removed, &report.Failed,
			&report.StartedAt, &report.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("run %q not found", runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.readDB.QueryContext(ctx,
		`SELECT principal_id, display_name, operation, outcome, error
		 FROM sync_run_members WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var m domain.MemberResult
		var op, outcome string
		if err := rows.Scan(&m.PrincipalID, &m.DisplayName, &op, &outcome, &m.Error); err != nil {
			return nil, err
		}
		m.Operation = domain.MemberOperation(op)
		m.Outcome = domain.MemberOutcome(outcome)
		report.Members = append(report.Members, m)
	}
	return &report, rows.Err()
}
