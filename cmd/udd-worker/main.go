// Command udd-worker runs the user-data-download packaging worker: it
// polls a request queue, resolves each request's table mapping, fans
// out one download task per table, and uploads the resulting archive
// to object storage behind a presigned URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/corelab/udd-packager/internal/config"
	"github.com/corelab/udd-packager/internal/infrastructure/catalog"
	"github.com/corelab/udd-packager/internal/infrastructure/clock"
	"github.com/corelab/udd-packager/internal/infrastructure/queue"
	"github.com/corelab/udd-packager/internal/infrastructure/storage"
	"github.com/corelab/udd-packager/internal/infrastructure/tableservice"
	"github.com/corelab/udd-packager/internal/worker"
	"github.com/corelab/udd-packager/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting user-data-download packaging worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Open(cfg.Queue.Path, logger)
	if err != nil {
		logger.Fatal("failed to open catalog", zap.Error(err))
	}
	defer cat.Close()

	q, err := queue.Open(cfg.Queue.Path, logger)
	if err != nil {
		logger.Fatal("failed to open request queue", zap.Error(err))
	}
	defer q.Close()

	fs, err := storage.NewLocalFileSpace(cfg.Workspace.BaseDir, logger)
	if err != nil {
		logger.Fatal("failed to initialize workspace", zap.Error(err))
	}

	gcsClient, err := gcs.NewClient(ctx, option.WithCredentialsFile(cfg.ObjectStore.ServiceAccountKeyPath))
	if err != nil {
		logger.Fatal("failed to initialize object storage client", zap.Error(err))
	}
	defer gcsClient.Close()

	serviceAccountKey, err := os.ReadFile(cfg.ObjectStore.ServiceAccountKeyPath)
	if err != nil {
		logger.Fatal("failed to read object storage credentials", zap.Error(err))
	}
	objectStore := storage.NewGCSObjectStore(gcsClient, cfg.ObjectStore.ServiceAccountID, serviceAccountKey, logger)

	tableService := tableservice.New(cfg.TableService.BaseURL, cfg.TableService.APIKey, logger)

	pool := worker.NewBoundedPool(cfg.Workspace.PoolSize, logger)
	poller := worker.NewTablePoller(cfg.TableService.PollInterval, cfg.TableService.MaxPollAttempts, logger)

	packager := worker.NewPackager(
		fs, objectStore, tableService, pool, poller, clock.System{},
		cfg.ObjectStore.Bucket, cfg.ObjectStore.URLExpiration, logger,
	)

	logger.Info("worker ready, polling request queue", zap.Duration("interval", cfg.Queue.PollInterval))
	q.Run(ctx, cfg.Queue.PollInterval, func(ctx context.Context, item *queue.QueuedRequest) {
		processRequest(ctx, q, cat, packager, item, logger)
	})

	logger.Info("worker shut down")
}

func processRequest(ctx context.Context, q *queue.Queue, cat *catalog.Catalog, packager *worker.Packager, item *queue.QueuedRequest, logger *zap.Logger) {
	req := item.Request
	logger = logger.With(zap.Int64("requestId", item.ID), zap.String("studyId", req.StudyID), zap.String("userId", req.UserID))

	account, err := cat.AccountInfo(ctx, req.UserID)
	if err != nil {
		logger.Error("failed to resolve account", zap.Error(err))
		_ = q.Fail(ctx, item.ID, err)
		return
	}

	mapping, err := cat.TableMapping(ctx, req.StudyID)
	if err != nil {
		logger.Error("failed to resolve table mapping", zap.Error(err))
		_ = q.Fail(ctx, item.ID, err)
		return
	}

	surveys, err := cat.SurveyTables(ctx, req.StudyID)
	if err != nil {
		logger.Error("failed to resolve survey tables", zap.Error(err))
		_ = q.Fail(ctx, item.ID, err)
		return
	}

	result, err := packager.PackageSynapseData(ctx, req, account, mapping, surveys)
	if err != nil {
		logger.Error("failed to package request", zap.Error(err))
		_ = q.Fail(ctx, item.ID, err)
		return
	}

	if result == nil {
		logger.Info("request produced no data, nothing packaged")
		if err := q.Complete(ctx, item.ID, ""); err != nil {
			logger.Error("failed to record completed request", zap.Error(err))
		}
		return
	}

	if err := q.Complete(ctx, item.ID, result.URL); err != nil {
		logger.Error("failed to record completed request", zap.Error(err))
		return
	}

	logger.Info("request packaged", zap.Time("urlExpires", result.ExpirationTime))
}
