package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/domain/udderrors"
	"github.com/corelab/udd-packager/internal/infrastructure/storage"
)

func TestSurveyDownloadTask_DownloadsTableToCSV(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewLocalFileSpace(dir, zap.NewNop())
	require.NoError(t, err)

	ts := newFakeTableService()
	ts.addTable("syn1", "demographics")
	ts.setFileContent("export-1-handle", "id,name\n1,alice\n")

	poller := NewTablePoller(0, 5, zap.NewNop())
	task := NewSurveyDownloadTask("syn1", fs, ts, poller, zap.NewNop())

	result := task.Run(context.Background(), dir)

	require.NoError(t, result.Err)
	require.Len(t, result.Files, 1)
	assert.Contains(t, result.Files[0], "demographics.csv")
	assert.True(t, fs.Exists(result.Files[0]))
}

func TestSurveyDownloadTask_WrapsResolveFailureAsServiceError(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewLocalFileSpace(dir, zap.NewNop())
	require.NoError(t, err)

	ts := newFakeTableService()
	poller := NewTablePoller(0, 5, zap.NewNop())
	task := NewSurveyDownloadTask("syn-missing", fs, ts, poller, zap.NewNop())

	result := task.Run(context.Background(), dir)

	require.Error(t, result.Err)
	var svcErr *udderrors.ServiceError
	assert.ErrorAs(t, result.Err, &svcErr)
	assert.Equal(t, "syn-missing", result.TableID)
}
