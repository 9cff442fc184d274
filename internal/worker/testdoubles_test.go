package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/corelab/udd-packager/internal/application/port"
	"github.com/corelab/udd-packager/internal/domain/udderrors"
)

func writeStringToPath(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func readPath(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// fakeTableService is a hand-rolled in-memory stand-in for
// port.TableService, in the same call-counting/injectable-failure
// style as the teacher's MockAttachmentRepository.
type fakeTableService struct {
	mu sync.Mutex

	tables map[string]*port.TableEntity

	// exports keyed by job token. Each export "completes" after
	// completeAfterPolls polls of the same token.
	exportPolls        map[string]int
	completeAfterPolls int
	exportResults      map[string]*port.CSVExportResult
	exportFailures     map[string]error

	bulkPolls    map[string]int
	bulkResults  map[string]*port.BulkFileHandleResult
	bulkFailures map[string]error

	// defaultBulkResult, when set, answers any bulk-download token with
	// no per-token entry in bulkResults. Lets a test fix the outcome
	// without predicting the fake's internal token sequence.
	defaultBulkResult *port.BulkFileHandleResult

	fileContents map[string]string

	getTableErr error
	nextToken   int
}

func newFakeTableService() *fakeTableService {
	return &fakeTableService{
		tables:             make(map[string]*port.TableEntity),
		exportPolls:        make(map[string]int),
		completeAfterPolls: 1,
		exportResults:      make(map[string]*port.CSVExportResult),
		exportFailures:     make(map[string]error),
		bulkPolls:          make(map[string]int),
		bulkResults:        make(map[string]*port.BulkFileHandleResult),
		bulkFailures:       make(map[string]error),
		fileContents:       make(map[string]string),
	}
}

func (f *fakeTableService) addTable(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[id] = &port.TableEntity{ID: id, Name: name}
}

func (f *fakeTableService) setFileContent(handleID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileContents[handleID] = content
}

func (f *fakeTableService) GetTable(ctx context.Context, tableID string) (*port.TableEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getTableErr != nil {
		return nil, f.getTableErr
	}
	t, ok := f.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("unknown table %s", tableID)
	}
	return t, nil
}

func (f *fakeTableService) StartCSVExport(ctx context.Context, query, tableID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextToken++
	token := fmt.Sprintf("export-%d", f.nextToken)
	return token, nil
}

func (f *fakeTableService) PollCSVExport(ctx context.Context, token, tableID string) (*port.CSVExportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.exportFailures[token]; ok {
		return nil, err
	}

	f.exportPolls[token]++
	if f.exportPolls[token] < f.completeAfterPolls {
		return nil, udderrors.ErrNotReady
	}

	if result, ok := f.exportResults[token]; ok {
		return result, nil
	}
	return &port.CSVExportResult{ResultsFileHandleID: token + "-handle"}, nil
}

func (f *fakeTableService) DownloadFileHandle(ctx context.Context, handleID, localPath string) error {
	f.mu.Lock()
	content, ok := f.fileContents[handleID]
	f.mu.Unlock()

	if !ok {
		content = "header\n"
	}
	return writeStringToPath(localPath, content)
}

func (f *fakeTableService) StartBulkDownload(ctx context.Context, req port.BulkDownloadRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextToken++
	token := fmt.Sprintf("bulk-%d", f.nextToken)
	return token, nil
}

func (f *fakeTableService) PollBulkDownload(ctx context.Context, token string) (*port.BulkFileHandleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.bulkFailures[token]; ok {
		return nil, err
	}

	f.bulkPolls[token]++
	if f.bulkPolls[token] < f.completeAfterPolls {
		return nil, udderrors.ErrNotReady
	}

	if result, ok := f.bulkResults[token]; ok {
		return result, nil
	}
	if f.defaultBulkResult != nil {
		return f.defaultBulkResult, nil
	}
	return &port.BulkFileHandleResult{
		ZipResultsFileHandleID: token + "-zip",
		PathByHandleID:         map[string]string{},
		FailureCodeByHandleID:  map[string]string{},
	}, nil
}

var _ port.TableService = (*fakeTableService)(nil)

// fakeObjectStore is an in-memory stand-in for port.ObjectStore.
type fakeObjectStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErr   error
	signErr  error
	signedTo map[string]time.Time
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte), signedTo: make(map[string]time.Time)}
}

func (f *fakeObjectStore) PutFile(bucket, key, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	data, err := readPath(localPath)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjectStore) GeneratePresignedURL(bucket, key string, expiration time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signedTo[bucket+"/"+key] = expiration
	return fmt.Sprintf("https://objectstore.example.com/%s/%s", bucket, key), nil
}

var _ port.ObjectStore = (*fakeObjectStore)(nil)

// fakeClock is a fixed-time stand-in for port.Clock.
type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

var _ port.Clock = fakeClock{}
