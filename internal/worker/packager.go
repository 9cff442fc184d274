package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/application/port"
	"github.com/corelab/udd-packager/internal/domain/entity"
	"github.com/corelab/udd-packager/internal/domain/udderrors"
)

// Packager is the top-level orchestrator: given a download request, it
// fans out one task per remote table, bundles every file they produce
// (plus an error log when some tables failed) into a single zip, and
// uploads that zip to object storage behind a presigned URL. It plays
// the role the teacher's container.go wiring and manager.go fan-out
// play separately, combined into one request-scoped pipeline.
type Packager struct {
	fs            port.FileSpace
	store         port.ObjectStore
	ts            port.TableService
	pool          port.WorkerPool
	poller        *TablePoller
	clock         port.Clock
	bucket        string
	urlExpiration time.Duration
	logger        *zap.Logger
}

// NewPackager wires a Packager from its dependencies. bucket is the
// object-storage bucket every archive is uploaded to; urlExpiration is
// how long the returned presigned URL stays valid.
func NewPackager(
	fs port.FileSpace,
	store port.ObjectStore,
	ts port.TableService,
	pool port.WorkerPool,
	poller *TablePoller,
	clock port.Clock,
	bucket string,
	urlExpiration time.Duration,
	logger *zap.Logger,
) *Packager {
	return &Packager{
		fs:            fs,
		store:         store,
		ts:            ts,
		pool:          pool,
		poller:        poller,
		clock:         clock,
		bucket:        bucket,
		urlExpiration: urlExpiration,
		logger:        logger,
	}
}

// PackageSynapseData runs the full pipeline for one request: export
// every mapped table and every survey table, zip whatever was
// produced (plus an error log for any partial failures), upload it,
// and return a time-limited download URL. When the tasks produced no
// files and no failures, nothing is uploaded and it returns (nil, nil).
func (p *Packager) PackageSynapseData(
	ctx context.Context,
	req *entity.Request,
	account *entity.AccountInfo,
	mapping *entity.TableMapping,
	surveys *entity.SurveyTableSet,
) (*entity.PresignedUrlInfo, error) {
	logger := p.logger.With(zap.String("studyId", req.StudyID), zap.String("userId", req.UserID))

	dir, err := p.fs.CreateTempDir()
	if err != nil {
		return nil, udderrors.NewFatalError("create temp dir", err)
	}
	defer func() {
		if derr := p.fs.DeleteDir(dir); derr != nil {
			logger.Warn("failed to remove temp dir", zap.String("dir", dir), zap.Error(derr))
		}
	}()

	results := p.runTasks(ctx, dir, req, account, mapping, surveys)

	var files []string
	var tableFailures []string
	var surveyFailures []string
	for _, r := range results {
		if r.Err != nil {
			msg := fmt.Sprintf("table %s: %v", r.TableID, r.Err)
			if r.Kind == entity.TaskKindSurvey {
				surveyFailures = append(surveyFailures, msg)
			} else {
				tableFailures = append(tableFailures, msg)
			}
			continue
		}
		files = append(files, r.Files...)
	}

	if len(tableFailures) > 0 {
		logPath, err := p.writeLog(dir, "error.log", tableFailures)
		if err != nil {
			return nil, udderrors.NewFatalError("write error log", err)
		}
		files = append(files, logPath)
		logger.Warn("some tables failed to download", zap.Int("failures", len(tableFailures)))
	}

	if len(surveyFailures) > 0 {
		logPath, err := p.writeLog(dir, "metadata-error.log", surveyFailures)
		if err != nil {
			return nil, udderrors.NewFatalError("write metadata error log", err)
		}
		files = append(files, logPath)
		logger.Warn("some survey tables failed to download", zap.Int("failures", len(surveyFailures)))
	}

	if len(files) == 0 {
		logger.Info("nothing to package", zap.Int("tables", len(results)))
		return nil, nil
	}

	archivePath, archiveName, err := p.buildArchive(dir, req, files)
	if err != nil {
		return nil, udderrors.NewFatalError("build archive", err)
	}

	if err := p.store.PutFile(p.bucket, archiveName, archivePath); err != nil {
		return nil, udderrors.NewFatalError("upload archive", err)
	}

	expiration := p.clock.Now().Add(p.urlExpiration)
	url, err := p.store.GeneratePresignedURL(p.bucket, archiveName, expiration)
	if err != nil {
		return nil, udderrors.NewFatalError("generate download url", err)
	}

	logger.Info("archive packaged", zap.String("archive", archiveName), zap.Int("files", len(files)))
	return &entity.PresignedUrlInfo{URL: url, ExpirationTime: expiration}, nil
}

// runTasks submits one task per table to the worker pool and blocks
// until every one of them has reported in.
func (p *Packager) runTasks(ctx context.Context, dir string, req *entity.Request, account *entity.AccountInfo, mapping *entity.TableMapping, surveys *entity.SurveyTableSet) []*entity.TaskResult {
	futures := make([]<-chan port.PoolResult, 0, mapping.Len()+surveys.Len())

	for _, tableID := range mapping.TableIDs() {
		tableID := tableID
		schema, _ := mapping.Resolve(tableID)
		task := NewTableDownloadTask(tableID, schema, account.HealthCode(), p.fs, p.ts, p.poller, p.logger)
		futures = append(futures, p.pool.Submit(func() (any, error) {
			return task.Run(ctx, dir, req), nil
		}))
	}

	for _, tableID := range surveys.IDs() {
		tableID := tableID
		task := NewSurveyDownloadTask(tableID, p.fs, p.ts, p.poller, p.logger)
		futures = append(futures, p.pool.Submit(func() (any, error) {
			return task.Run(ctx, dir), nil
		}))
	}

	results := make([]*entity.TaskResult, 0, len(futures))
	for _, f := range futures {
		r := <-f
		if r.Err != nil {
			// A task panic surfaces here; everything else is carried
			// inside the TaskResult itself.
			results = append(results, &entity.TaskResult{Err: r.Err})
			continue
		}
		results = append(results, r.Value.(*entity.TaskResult))
	}
	return results
}

func (p *Packager) writeLog(dir, name string, failures []string) (string, error) {
	path := p.fs.NewFile(dir, name)
	w, err := p.fs.OpenWriter(path)
	if err != nil {
		return "", err
	}
	defer w.Close()

	if _, err := w.Write([]byte(strings.Join(failures, "\n") + "\n")); err != nil {
		return "", err
	}
	return path, nil
}

// buildArchive zips files into a uniquely-named archive under dir and
// returns its local path and basename. Archive entries are named by
// basename, so two input files sharing a basename are an error rather
// than a silent overwrite. A file already present in dir under the
// generated archive name is also an error; the bucket itself is not
// checked.
func (p *Packager) buildArchive(dir string, req *entity.Request, files []string) (string, string, error) {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		if seen[base] {
			return "", "", fmt.Errorf("duplicate archive entry name: %s", base)
		}
		seen[base] = true
	}

	name := fmt.Sprintf("userdata-%s-to-%s-%s.zip", req.StartDateString(), req.EndDateString(), uuid.NewString())
	path := p.fs.NewFile(dir, name)

	if p.fs.Exists(path) {
		return "", "", fmt.Errorf("archive name collision: %s", name)
	}

	if err := buildZipArchive(p.fs, path, files); err != nil {
		return "", "", err
	}
	return path, name, nil
}
