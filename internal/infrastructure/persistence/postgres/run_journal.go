package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
)

// DefaultRecentRuns bounds RecentRuns when no positive limit is given.
const DefaultRecentRuns = 20

// RunJournal stores batch summaries in distribution_runs. Only counters are
// written, never student handles or plan contents.
type RunJournal struct {
	db Querier
}

var _ command.RunRecorder = (*RunJournal)(nil)

// NewRunJournal creates a new RunJournal.
func NewRunJournal(db Querier) *RunJournal {
	return &RunJournal{db: db}
}

// RecordRun inserts the summary. Recording the same run twice is a no-op.
func (j *RunJournal) RecordRun(ctx context.Context, s command.BatchSummary) error {
	id, err := uuid.Parse(s.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", s.RunID, err)
	}
	if strings.TrimSpace(s.MentorID) == "" {
		return fmt.Errorf("run %s: mentor id is required", s.RunID)
	}

	query := `
		INSERT INTO distribution_runs (
			id, mentor_id, started_at, finished_at,
			total, sent, duplicates, failed, skipped
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = j.db.Exec(ctx, query,
		id,
		s.MentorID,
		s.StartedAt,
		s.FinishedAt,
		s.Total,
		s.Sent,
		s.Duplicates,
		s.Failed,
		s.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", s.RunID, err)
	}

	return nil
}

// RecentRuns returns the latest runs of mentorID, newest first.
func (j *RunJournal) RecentRuns(ctx context.Context, mentorID string, limit int) ([]command.BatchSummary, error) {
	if limit <= 0 {
		limit = DefaultRecentRuns
	}

	query := `
		SELECT id, mentor_id, started_at, finished_at,
			   total, sent, duplicates, failed, skipped
		FROM distribution_runs
		WHERE mentor_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := j.db.Query(ctx, query, mentorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]command.BatchSummary, 0, limit)
	for rows.Next() {
		var s command.BatchSummary
		var id uuid.UUID

		err := rows.Scan(
			&id,
			&s.MentorID,
			&s.StartedAt,
			&s.FinishedAt,
			&s.Total,
			&s.Sent,
			&s.Duplicates,
			&s.Failed,
			&s.Skipped,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		s.RunID = id.String()
		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
