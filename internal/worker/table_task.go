package worker

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/application/port"
	"github.com/corelab/udd-packager/internal/domain/entity"
	"github.com/corelab/udd-packager/internal/domain/udderrors"
)

// TableDownloadTask exports one data table for a date range, and, when
// its schema declares attachment columns, bulk-downloads the
// referenced files and rewrites the CSV so attachment cells point at
// local paths instead of remote handle ids. It is the attachment-aware
// sibling of SurveyDownloadTask, grounded on the same
// export-poll-download pipeline the teacher repeats across
// async_download.go and invoice_processor.go.
type TableDownloadTask struct {
	tableID    string
	schema     *entity.UploadSchema
	healthCode string
	fs         port.FileSpace
	ts         port.TableService
	poller     *TablePoller
	logger     *zap.Logger
}

// NewTableDownloadTask builds a task for tableID, governed by schema,
// scoped to the rows belonging to healthCode.
func NewTableDownloadTask(tableID string, schema *entity.UploadSchema, healthCode string, fs port.FileSpace, ts port.TableService, poller *TablePoller, logger *zap.Logger) *TableDownloadTask {
	return &TableDownloadTask{tableID: tableID, schema: schema, healthCode: healthCode, fs: fs, ts: ts, poller: poller, logger: logger}
}

// Run executes the full export/attachment pipeline and returns the
// task's final files, or an error wrapped as *udderrors.ServiceError.
func (t *TableDownloadTask) Run(ctx context.Context, dir string, req *entity.Request) *entity.TaskResult {
	started := time.Now()
	logger := t.logger.With(zap.String("tableId", t.tableID))

	var produced []string
	ok := false
	defer func() {
		if !ok {
			t.cleanupFiles(produced)
		}
	}()

	table, err := t.ts.GetTable(ctx, t.tableID)
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("resolve table: %w", err)))
	}

	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE healthCode='%s' AND uploadDate >= '%s' AND uploadDate <= '%s'",
		t.tableID, t.healthCode, req.StartDateString(), req.EndDateString(),
	)

	csvPath, err := t.exportAndDownload(ctx, query, dir, table.Name+".csv")
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, err))
	}
	produced = append(produced, csvPath)

	taskCtx := &entity.DownloadTaskContext{CSVFile: csvPath}

	rowCount, err := countDataRows(t.fs, csvPath)
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("inspect export: %w", err)))
	}

	// Empty result or a schema with no attachment-kind columns: the
	// plain export is the final output, nothing to rewrite.
	if rowCount == 0 || !t.schema.HasAttachmentFields() {
		ok = true
		logger.Info("table downloaded", zap.Duration("elapsed", time.Since(started)), zap.Int("rows", rowCount))
		return &entity.TaskResult{TableID: t.tableID, Kind: entity.TaskKindTable, Files: taskCtx.Outputs()}
	}

	attachmentCols := attachmentColumnIndexes(t.fs, csvPath, t.schema)
	handleIDs, err := collectFileHandleIDs(t.fs, csvPath, attachmentCols)
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("scan attachments: %w", err)))
	}

	if len(handleIDs) == 0 {
		ok = true
		logger.Info("table downloaded, no attachment values present", zap.Duration("elapsed", time.Since(started)))
		return &entity.TaskResult{TableID: t.tableID, Kind: entity.TaskKindTable, Files: taskCtx.Outputs()}
	}

	bulkResult, err := t.bulkDownloadAttachments(ctx, handleIDs)
	if err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, err))
	}

	zipPath := t.fs.NewFile(dir, table.Name+"-attachments.zip")
	produced = append(produced, zipPath)
	if err := t.ts.DownloadFileHandle(ctx, bulkResult.ZipResultsFileHandleID, zipPath); err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("download attachment bundle: %w", err)))
	}
	taskCtx.BulkDownloadFile = zipPath

	editedPath := t.fs.NewFile(dir, table.Name+"-edited.csv")
	produced = append(produced, editedPath)
	if err := rewriteCSVWithLocalPaths(t.fs, csvPath, editedPath, attachmentCols, bulkResult); err != nil {
		return t.fail(udderrors.NewServiceError(t.tableID, fmt.Errorf("rewrite export: %w", err)))
	}
	taskCtx.EditedCSVFile = editedPath

	ok = true
	if err := t.fs.Delete(csvPath); err != nil {
		logger.Warn("failed to remove intermediate export", zap.String("file", csvPath), zap.Error(err))
	}

	logger.Info("table downloaded with attachments",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("attachments", len(handleIDs)),
	)
	return &entity.TaskResult{TableID: t.tableID, Kind: entity.TaskKindTable, Files: taskCtx.Outputs()}
}

func (t *TableDownloadTask) exportAndDownload(ctx context.Context, query, dir, fileName string) (string, error) {
	token, err := t.ts.StartCSVExport(ctx, query, t.tableID)
	if err != nil {
		return "", fmt.Errorf("start export: %w", err)
	}

	result, err := t.poller.Poll(ctx, func(ctx context.Context) (any, error) {
		return t.ts.PollCSVExport(ctx, token, t.tableID)
	})
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	exported := result.(*port.CSVExportResult)
	path := t.fs.NewFile(dir, fileName)
	if err := t.ts.DownloadFileHandle(ctx, exported.ResultsFileHandleID, path); err != nil {
		if derr := t.fs.Delete(path); derr != nil {
			t.logger.Warn("failed to remove partial export", zap.String("file", path), zap.Error(derr))
		}
		return "", fmt.Errorf("download export: %w", err)
	}
	return path, nil
}

func (t *TableDownloadTask) bulkDownloadAttachments(ctx context.Context, handleIDs []string) (*port.BulkFileHandleResult, error) {
	token, err := t.ts.StartBulkDownload(ctx, port.BulkDownloadRequest{TableID: t.tableID, FileHandleIDs: handleIDs})
	if err != nil {
		return nil, fmt.Errorf("start bulk download: %w", err)
	}

	result, err := t.poller.Poll(ctx, func(ctx context.Context) (any, error) {
		return t.ts.PollBulkDownload(ctx, token)
	})
	if err != nil {
		return nil, fmt.Errorf("bulk download: %w", err)
	}

	return result.(*port.BulkFileHandleResult), nil
}

// cleanupFiles removes every produced file. It is safe to call more
// than once: FileSpace.Delete is a no-op on a path that no longer
// exists.
func (t *TableDownloadTask) cleanupFiles(files []string) {
	for _, f := range files {
		if err := t.fs.Delete(f); err != nil {
			t.logger.Warn("cleanup failed to remove file", zap.String("file", f), zap.Error(err))
		}
	}
}

func (t *TableDownloadTask) fail(err error) *entity.TaskResult {
	t.logger.Error("table download failed", zap.String("tableId", t.tableID), zap.Error(err))
	return &entity.TaskResult{TableID: t.tableID, Kind: entity.TaskKindTable, Err: err}
}

// countDataRows returns the number of non-header rows in the CSV at
// path.
func countDataRows(fs port.FileSpace, path string) (int, error) {
	f, err := fs.OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// attachmentColumnIndexes returns the CSV column indexes whose header
// name matches one of schema's attachment-kind fields.
func attachmentColumnIndexes(fs port.FileSpace, path string, schema *entity.UploadSchema) []int {
	f, err := fs.OpenReader(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil
	}

	attachmentNames := make(map[string]bool)
	for _, field := range schema.AttachmentFields() {
		attachmentNames[field.Name] = true
	}

	var indexes []int
	for i, name := range header {
		if attachmentNames[name] {
			indexes = append(indexes, i)
		}
	}
	return indexes
}

// collectFileHandleIDs scans every row of the CSV at path and gathers
// the distinct, non-empty values in the given column indexes.
func collectFileHandleIDs(fs port.FileSpace, path string, cols []int) ([]string, error) {
	if len(cols) == 0 {
		return nil, nil
	}

	f, err := fs.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		for _, col := range cols {
			if col >= len(row) {
				continue
			}
			v := row[col]
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			ids = append(ids, v)
		}
	}
	return ids, nil
}

// rewriteCSVWithLocalPaths streams src to dst, replacing every
// attachment-column cell with its local-path-within-zip, or a
// "[failed: <code>]" placeholder when that handle id failed to
// download. It never buffers the whole file, the way the teacher's
// reference export routines stream row by row.
func rewriteCSVWithLocalPaths(fs port.FileSpace, src, dst string, cols []int, bulk *port.BulkFileHandleResult) error {
	in, err := fs.OpenReader(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenWriter(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	colSet := make(map[int]bool, len(cols))
	for _, c := range cols {
		colSet[c] = true
	}

	r := csv.NewReader(in)
	w := csv.NewWriter(out)
	defer w.Flush()

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		for col := range colSet {
			if col >= len(row) || row[col] == "" {
				continue
			}
			handleID := row[col]
			if localPath, ok := bulk.PathByHandleID[handleID]; ok {
				row[col] = localPath
			} else if code, ok := bulk.FailureCodeByHandleID[handleID]; ok {
				row[col] = fmt.Sprintf("[failed: %s]", code)
			}
		}

		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}
