package port

import "context"

// TableEntity is the remote table metadata resolved from a table id.
type TableEntity struct {
	ID   string
	Name string
}

// CSVExportResult is what a finished async CSV export job yields.
type CSVExportResult struct {
	ResultsFileHandleID string
}

// BulkFileHandleResult maps each requested file-handle id to either a
// local-path-within-zip on success, or a failure code.
type BulkFileHandleResult struct {
	ZipResultsFileHandleID string
	PathByHandleID         map[string]string
	FailureCodeByHandleID  map[string]string
}

// BulkDownloadRequest names a table and the file-handle ids to bundle.
type BulkDownloadRequest struct {
	TableID        string
	FileHandleIDs  []string
}

// TableService is the remote table/query/file-handle API the
// packaging tasks drive.
type TableService interface {
	// GetTable resolves a table id to its entity (including display
	// name).
	GetTable(ctx context.Context, tableID string) (*TableEntity, error)

	// StartCSVExport submits query against tableID and returns an
	// opaque job token.
	StartCSVExport(ctx context.Context, query, tableID string) (string, error)

	// PollCSVExport checks a CSV export job. It returns
	// udderrors.ErrNotReady (wrapped) while the job is still running.
	PollCSVExport(ctx context.Context, token, tableID string) (*CSVExportResult, error)

	// DownloadFileHandle downloads handleID to localPath.
	DownloadFileHandle(ctx context.Context, handleID, localPath string) error

	// StartBulkDownload submits a bulk file-handle download request
	// and returns an opaque job token.
	StartBulkDownload(ctx context.Context, req BulkDownloadRequest) (string, error)

	// PollBulkDownload checks a bulk download job. It returns
	// udderrors.ErrNotReady (wrapped) while the job is still running.
	PollBulkDownload(ctx context.Context, token string) (*BulkFileHandleResult, error)
}
