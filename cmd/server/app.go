package main

import (
	"context"
	"fmt"

	"github.com/auddy/backend/internal/config"
	"github.com/auddy/backend/internal/db"
	"github.com/auddy/backend/internal/download"
	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/fetcher"
	"github.com/auddy/backend/internal/ffmpeg"
	"github.com/auddy/backend/internal/gdrive"
	"github.com/auddy/backend/internal/health"
	"github.com/auddy/backend/internal/httpdl"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/metrics"
	"github.com/auddy/backend/internal/placement"
	"github.com/auddy/backend/internal/runner"
	"github.com/auddy/backend/internal/source"
	"github.com/auddy/backend/internal/storage"
	"github.com/auddy/backend/internal/toolexec"
	"github.com/auddy/backend/internal/ytdlp"
)

// app holds the long-lived collaborators shared by the commands.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics

	db     *db.DB
	repo   extraction.Repository
	redis  *download.RedisQueue
	broker download.Broker
	mirror storage.Mirror
	engine *placement.Engine
	runner *runner.Runner
}

type appOptions struct {
	// memoryOnly ignores the configured store and queue drivers.
	memoryOnly bool
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.Default()}

	if err := a.openStore(cfg, opts); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openBroker(cfg, opts); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openMirror(ctx, cfg); err != nil {
		a.close()
		return nil, err
	}
	if err := a.buildRunner(ctx, cfg); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(cfg *config.Config, opts appOptions) error {
	if opts.memoryOnly || cfg.StoreDriver == config.DriverMemory {
		a.repo = extraction.NewMemoryRepository()
		return nil
	}

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return fmt.Errorf("run migrations: %w", err)
	}
	a.db = database
	a.repo = db.NewExtractionRepository(database)
	return nil
}

func (a *app) openBroker(cfg *config.Config, opts appOptions) error {
	if opts.memoryOnly || cfg.QueueDriver == config.DriverMemory {
		a.broker = download.NewMemoryQueue(download.DefaultMemoryQueueSize)
		return nil
	}

	q, err := download.NewRedisQueue(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = q
	a.broker = q
	return nil
}

func (a *app) openMirror(ctx context.Context, cfg *config.Config) error {
	switch cfg.StorageDriver {
	case config.StorageMinio:
		c, err := storage.New(&storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		if err := c.EnsureBucket(ctx); err != nil {
			a.log.WarnErr(ctx, "could not ensure mirror bucket", err, logger.Fields{"bucket": c.Bucket()})
		}
		a.mirror = c
	case config.StorageS3:
		s, err := storage.NewS3Storage(&storage.S3Config{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return err
		}
		a.mirror = s
	}
	return nil
}

func (a *app) buildRunner(ctx context.Context, cfg *config.Config) error {
	tools := toolexec.ExecRunner{}
	downloader := ytdlp.New(&ytdlp.Config{
		YtdlpPath:    cfg.YtdlpPath,
		AudioQuality: cfg.AudioQuality,
	}, tools).WithLogger(a.log)
	transcoder := ffmpeg.New(
		ffmpeg.WithFFmpegPath(cfg.FFmpegPath),
		ffmpeg.WithFFprobePath(cfg.FFprobePath),
		ffmpeg.WithRunner(tools),
	)
	httpClient := httpdl.New(httpdl.Config{
		ChunkSize:    cfg.DownloadChunkSize,
		DriveBaseURL: cfg.DriveBaseURL,
	})

	var titles fetcher.TitleResolver
	if cfg.GoogleCredentialsFile != "" {
		drive, err := gdrive.NewClient(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return fmt.Errorf("drive client: %w", err)
		}
		titles = drive
	}

	registry := fetcher.NewRegistry()
	registry.Register(source.YouTube, fetcher.NewYouTube(downloader, transcoder, a.log))
	registry.Register(source.GoogleDrive, fetcher.NewGoogleDrive(httpClient, transcoder, titles, a.log))
	registry.Register(source.GenericVideo, fetcher.NewVideo(httpClient, transcoder, a.log))
	if missing := registry.Missing(); len(missing) > 0 {
		return fmt.Errorf("no fetcher registered for %v", missing)
	}

	var placeOpts []placement.Option
	if a.mirror != nil {
		placeOpts = append(placeOpts, placement.WithMirror(a.mirror))
	}
	a.engine = placement.New(cfg.ExtractionDir, a.log, placeOpts...)

	a.runner = runner.New(runner.Config{
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		ScratchDir: cfg.ScratchDir,
	}, a.repo, registry, a.engine, a.log,
		runner.WithPublisher(a.broker),
		runner.WithMetrics(a.metrics),
	)
	return nil
}

// dispatcher returns the dispatch service, with in-process workers when
// runWorkers is set.
func (a *app) dispatcher(runWorkers bool) *download.Service {
	return download.NewService(a.broker, a.runner, &download.ServiceConfig{
		WorkerCount: a.cfg.WorkerCount,
		RunWorkers:  runWorkers,
		Logger:      a.log,
		Metrics:     a.metrics,
	})
}

func (a *app) healthChecker(dispatch *download.Service) *health.Checker {
	cfg := &health.CheckerConfig{
		Version:   version,
		Backlog:   dispatch.QueueLength,
		Directory: health.DirPinger(a.engine.Root()),
		Tools: []toolexec.Requirement{
			{Name: "yt-dlp", Command: a.cfg.YtdlpPath},
			{Name: "ffmpeg", Command: a.cfg.FFmpegPath},
			{Name: "ffprobe", Command: a.cfg.FFprobePath},
		},
	}
	if a.db != nil {
		cfg.DB = a.db
	}
	if a.redis != nil {
		cfg.Queue = a.redis
	}
	if a.mirror != nil {
		cfg.Storage = a.mirror
	}
	return health.NewChecker(cfg)
}

func (a *app) close() {
	if a.broker != nil {
		a.broker.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
