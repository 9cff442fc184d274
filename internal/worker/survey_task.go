package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/application/port"
	"github.com/corelab/udd-packager/internal/domain/entity"
	"github.com/corelab/udd-packager/internal/domain/udderrors"
)

// SurveyDownloadTask exports one survey metadata table (schemas,
// question definitions) to a flat CSV with no attachment handling. It
// mirrors TableDownloadTask's export+poll+download pipeline with the
// attachment steps removed, the way the teacher's invoice_processor.go
// and async_download.go share a poll-process shape but diverge in what
// "process" means.
type SurveyDownloadTask struct {
	tableID string
	fs      port.FileSpace
	ts      port.TableService
	poller  *TablePoller
	logger  *zap.Logger
}

// NewSurveyDownloadTask builds a task that downloads tableID's full
// contents into dir as a CSV named after the table's display name.
func NewSurveyDownloadTask(tableID string, fs port.FileSpace, ts port.TableService, poller *TablePoller, logger *zap.Logger) *SurveyDownloadTask {
	return &SurveyDownloadTask{tableID: tableID, fs: fs, ts: ts, poller: poller, logger: logger}
}

// Run exports the table and writes it to <dir>/<tableName>.csv. It
// returns a TaskResult whose Files names that one path, or whose Err
// is a *udderrors.ServiceError describing what went wrong.
func (t *SurveyDownloadTask) Run(ctx context.Context, dir string) *entity.TaskResult {
	started := time.Now()
	logger := t.logger.With(zap.String("tableId", t.tableID))

	table, err := t.ts.GetTable(ctx, t.tableID)
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("resolve table: %w", err)))
	}

	query := fmt.Sprintf("SELECT * FROM %s", t.tableID)
	token, err := t.ts.StartCSVExport(ctx, query, t.tableID)
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("start export: %w", err)))
	}

	result, err := t.poller.Poll(ctx, func(ctx context.Context) (any, error) {
		return t.ts.PollCSVExport(ctx, token, t.tableID)
	})
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("export: %w", err)))
	}

	exported := result.(*port.CSVExportResult)

	csvPath := t.fs.NewFile(dir, table.Name+".csv")
	if err := t.ts.DownloadFileHandle(ctx, exported.ResultsFileHandleID, csvPath); err != nil {
		if t.fs.Exists(csvPath) {
			if derr := t.fs.Delete(csvPath); derr != nil {
				logger.Warn("failed to remove partial export", zap.String("file", csvPath), zap.Error(derr))
			}
		}
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("download export: %w", err)))
	}

	logger.Info("survey table downloaded", zap.Duration("elapsed", time.Since(started)), zap.String("file", csvPath))
	return &entity.TaskResult{TableID: t.tableID, Kind: entity.TaskKindSurvey, Files: []string{csvPath}}
}

func (t *SurveyDownloadTask) fail(err error) *entity.TaskResult {
	t.logger.Error("survey table download failed", zap.String("tableId", t.tableID), zap.Error(err))
	return &entity.TaskResult{TableID: t.tableID, Kind: entity.TaskKindSurvey, Err: err}
}
