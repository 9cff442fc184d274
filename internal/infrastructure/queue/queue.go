// Package queue is the sqlite-backed request intake: it persists
// incoming packaging requests and lets the worker claim and complete
// them one at a time, grounded on the teacher's ticker-driven poll
// loop (status_poller.go) generalized from an in-process status check
// to a durable work queue.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/domain/entity"
	"github.com/corelab/udd-packager/internal/infrastructure/persistence/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	study_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	start_date  TEXT NOT NULL,
	end_date    TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	result_url  TEXT,
	error       TEXT,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Status values a request moves through.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// QueuedRequest is a persisted request plus its queue-assigned id.
type QueuedRequest struct {
	ID      int64
	Request *entity.Request
}

// Queue is the sqlite-backed request store.
type Queue struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string, logger *zap.Logger) (*Queue, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate queue db: %w", err)
	}

	return &Queue{db: sqlite.NewDB(sqlDB, logger), logger: logger}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue persists a new pending request and returns its id.
func (q *Queue) Enqueue(ctx context.Context, req *entity.Request) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO requests (study_id, user_id, start_date, end_date, status) VALUES (?, ?, ?, ?, ?)`,
		req.StudyID, req.UserID, req.StartDateString(), req.EndDateString(), StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue request: %w", err)
	}
	return res.LastInsertId()
}

// ClaimNext atomically claims the oldest pending request, marking it
// processing, or returns (nil, nil) if the queue is empty.
func (q *Queue) ClaimNext(ctx context.Context) (*QueuedRequest, error) {
	var claimed *QueuedRequest

	err := q.db.WithTransaction(ctx, func(ctx context.Context) error {
		row := q.db.Executor(ctx).QueryRowContext(ctx,
			`SELECT id, study_id, user_id, start_date, end_date FROM requests WHERE status = ? ORDER BY id ASC LIMIT 1`,
			StatusPending,
		)

		var id int64
		var studyID, userID, startDate, endDate string
		if err := row.Scan(&id, &studyID, &userID, &startDate, &endDate); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return fmt.Errorf("scan pending request: %w", err)
		}

		if _, err := q.db.Executor(ctx).ExecContext(ctx,
			`UPDATE requests SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			StatusProcessing, id,
		); err != nil {
			return fmt.Errorf("claim request %d: %w", id, err)
		}

		req, err := entity.NewRequest(studyID, userID, startDate, endDate)
		if err != nil {
			return fmt.Errorf("rehydrate request %d: %w", id, err)
		}

		claimed = &QueuedRequest{ID: id, Request: req}
		return nil
	})

	return claimed, err
}

// Complete marks a claimed request finished with its archive's
// download URL.
func (q *Queue) Complete(ctx context.Context, id int64, url string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, result_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		StatusComplete, url, id,
	)
	return err
}

// Fail marks a claimed request failed with the given error detail.
func (q *Queue) Fail(ctx context.Context, id int64, cause error) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		StatusFailed, cause.Error(), id,
	)
	return err
}

// Run polls for pending requests every interval until ctx is
// cancelled, invoking handle for each one it claims. It mirrors the
// teacher's StatusPoller ticker loop, generalized to dispatch durable
// queue entries instead of checking in-memory state.
func (q *Queue) Run(ctx context.Context, interval time.Duration, handle func(context.Context, *QueuedRequest)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.drain(ctx, handle)
		}
	}
}

func (q *Queue) drain(ctx context.Context, handle func(context.Context, *QueuedRequest)) {
	for {
		item, err := q.ClaimNext(ctx)
		if err != nil {
			q.logger.Error("failed to claim next request", zap.Error(err))
			return
		}
		if item == nil {
			return
		}
		handle(ctx, item)
	}
}
