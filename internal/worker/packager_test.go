package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/domain/entity"
	"github.com/corelab/udd-packager/internal/infrastructure/storage"
)

func newTestPackager(t *testing.T, fs *storage.LocalFileSpace, ts *fakeTableService, store *fakeObjectStore) *Packager {
	t.Helper()
	pool := NewBoundedPool(4, zap.NewNop())
	poller := NewTablePoller(0, 5, zap.NewNop())
	clock := fakeClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	return NewPackager(fs, store, ts, pool, poller, clock, "test-bucket", 24*time.Hour, zap.NewNop())
}

func TestPackager_PackagesSurveyAndTableResults(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewLocalFileSpace(dir, zap.NewNop())
	require.NoError(t, err)

	ts := newFakeTableService()
	ts.addTable("syn-survey", "demographics")
	ts.addTable("syn-table", "visits")
	ts.setFileContent("export-1-handle", "q1,q2\nyes,no\n")
	ts.setFileContent("export-2-handle", "id,value\n1,10\n")

	store := newFakeObjectStore()
	packager := newTestPackager(t, fs, ts, store)

	mapping := entity.NewTableMapping()
	mapping.Add("syn-table", &entity.UploadSchema{
		Key:    entity.SchemaKey{StudyID: "syn-study", SchemaID: "sch1", Revision: 1},
		Fields: []entity.FieldDefinition{{Name: "id", Type: entity.FieldTypeInt}, {Name: "value", Type: entity.FieldTypeInt}},
	})
	surveys := entity.NewSurveyTableSet("syn-survey")

	req := newTestRequest(t)
	account, err := entity.NewAccountInfo("person@example.com", "user-1", "")
	require.NoError(t, err)

	info, err := packager.PackageSynapseData(context.Background(), req, account, mapping, surveys)
	require.NoError(t, err)
	assert.Contains(t, info.URL, "test-bucket")
	assert.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), info.ExpirationTime)

	// Temp working directory is fully cleaned up afterward.
	empty, err := fs.IsEmpty(dir)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestPackager_PartialFailureStillProducesArchiveWithErrorLog(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewLocalFileSpace(dir, zap.NewNop())
	require.NoError(t, err)

	ts := newFakeTableService()
	ts.addTable("syn-ok", "visits")
	ts.setFileContent("export-1-handle", "id,value\n1,10\n")
	ts.getTableErr = nil

	store := newFakeObjectStore()
	packager := newTestPackager(t, fs, ts, store)

	mapping := entity.NewTableMapping()
	mapping.Add("syn-ok", &entity.UploadSchema{
		Key:    entity.SchemaKey{StudyID: "syn-study", SchemaID: "sch1", Revision: 1},
		Fields: []entity.FieldDefinition{{Name: "id", Type: entity.FieldTypeInt}, {Name: "value", Type: entity.FieldTypeInt}},
	})
	mapping.Add("syn-missing", &entity.UploadSchema{
		Key:    entity.SchemaKey{StudyID: "syn-study", SchemaID: "sch2", Revision: 1},
		Fields: []entity.FieldDefinition{{Name: "id", Type: entity.FieldTypeInt}},
	})
	surveys := entity.NewSurveyTableSet()

	req := newTestRequest(t)
	account, err := entity.NewAccountInfo("person@example.com", "user-1", "")
	require.NoError(t, err)

	info, err := packager.PackageSynapseData(context.Background(), req, account, mapping, surveys)
	require.NoError(t, err)
	require.NotNil(t, info)

	data := soleUploadedObject(t, store)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "visits.csv")
	assert.Contains(t, names, "error.log")
}

func soleUploadedObject(t *testing.T, store *fakeObjectStore) []byte {
	t.Helper()
	require.Len(t, store.objects, 1)
	for _, data := range store.objects {
		return data
	}
	return nil
}
