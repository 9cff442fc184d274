package entity

// DownloadTaskContext tracks the files a single TableDownloadTask
// produces across its lifetime. It is mutable only by its owning task.
type DownloadTaskContext struct {
	// CSVFile is the exported CSV for the query. It is set even when the
	// query returned no data rows (a header-only export).
	CSVFile string

	// BulkDownloadFile is a zip of attachment files. Present only when
	// the schema has attachment columns and at least one row
	// references a file handle.
	BulkDownloadFile string

	// EditedCSVFile is CSVFile rewritten so attachment cells contain
	// local filenames. Present iff BulkDownloadFile is present.
	EditedCSVFile string
}

// Outputs returns the files that should be retained as this task's
// final result: (EditedCSVFile, BulkDownloadFile) when both are set,
// otherwise (CSVFile) alone, otherwise none.
func (c *DownloadTaskContext) Outputs() []string {
	if c.EditedCSVFile != "" && c.BulkDownloadFile != "" {
		return []string{c.EditedCSVFile, c.BulkDownloadFile}
	}
	if c.CSVFile != "" {
		return []string{c.CSVFile}
	}
	return nil
}

// TaskKind distinguishes which task produced a TaskResult, so the
// Packager can route a failure into the right error log.
type TaskKind int

const (
	TaskKindTable TaskKind = iota
	TaskKindSurvey
)

// TaskResult is what a TableDownloadTask or SurveyDownloadTask hands
// back to the Packager.
type TaskResult struct {
	TableID string
	Kind    TaskKind
	Files   []string
	Err     error
}
