package bootstrap

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/config"
	appdb "github.com/mangorocketofficial/tech-blog/internal/db"
	apphttp "github.com/mangorocketofficial/tech-blog/internal/http"
	"github.com/mangorocketofficial/tech-blog/internal/llm"
	applog "github.com/mangorocketofficial/tech-blog/internal/log"
	"github.com/mangorocketofficial/tech-blog/internal/search"
	"github.com/mangorocketofficial/tech-blog/internal/storage"
)

const (
	rateLimitClientTTL = 10 * time.Minute
	uploadsURLPrefix   = "/uploads/"
)

type Dependencies struct {
	Config    *config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	Blog       *blog.Service
	HTTPServer *apphttp.Server
	Database   *gorm.DB
	Search     *search.Index
	Cleanup    func() error
}

// OpenDatabase connects to Postgres when DATABASE_URL is set, SQLite otherwise,
// and applies migrations.
func OpenDatabase(ctx context.Context, deps Dependencies) (*gorm.DB, error) {
	db, err := appdb.Open(appdb.Options{
		URL:    deps.Config.DatabaseURL,
		Path:   deps.Config.DBPath,
		Logger: applog.GormLogger(deps.Logger),
	})
	if err != nil {
		return nil, eris.Wrap(err, "opening database")
	}

	if err := blog.Migrate(ctx, db, deps.Logger); err != nil {
		if closeErr := appdb.Close(db); closeErr != nil {
			deps.Logger.WithError(closeErr).Error("closing database after migration failure")
		}
		return nil, eris.Wrap(err, "running blog migrations")
	}

	return db, nil
}

// Build composes the blog application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	if deps.Config == nil || deps.Logger == nil {
		return Result{}, eris.New("config and logger are required")
	}
	cfg := deps.Config

	db, err := OpenDatabase(ctx, deps)
	if err != nil {
		return Result{}, err
	}

	var index *search.Index
	closeOnError := func(wrapper error) (Result, error) {
		if index != nil {
			if closeErr := index.Close(); closeErr != nil {
				deps.Logger.WithError(closeErr).Error("closing search index after bootstrap failure")
			}
		}
		if closeErr := appdb.Close(db); closeErr != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	repo, err := blog.NewRepository(db, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating blog repository"))
	}

	index, err = search.Open(cfg.SearchIndexPath, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "opening search index"))
	}

	generator, err := buildGenerator(cfg, deps.Logger)
	if err != nil {
		return closeOnError(err)
	}

	bucket, uploadDir, err := buildBucket(cfg, deps.Logger)
	if err != nil {
		return closeOnError(err)
	}

	uploader, err := storage.NewUploader(storage.UploaderOptions{Bucket: bucket, Logger: deps.Logger})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating image uploader"))
	}

	service, err := blog.NewService(blog.ServiceOptions{
		Repository:   repo,
		Generator:    generator,
		Search:       index,
		InfoCategory: cfg.InfoPostCategory,
		Logger:       deps.Logger,
		SentryHub:    deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating blog service"))
	}

	// In-memory and newly created indexes start empty.
	if docs, err := index.Count(); err != nil || docs == 0 {
		count, err := service.Reindex(ctx)
		if err != nil {
			return closeOnError(eris.Wrap(err, "building search index"))
		}
		deps.Logger.WithField("posts", count).Info("search index built")
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Blog:      service,
		Uploader:  uploader,
		Database:  db,
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
		Auth: apphttp.AuthSettings{
			Email:         cfg.AdminEmail,
			Password:      cfg.AdminPassword,
			SecretKey:     cfg.AdminSecretKey,
			SessionSecret: cfg.SessionSecret,
			CookieSecure:  cfg.CookieSecure,
			OpenAccess:    openAccess(cfg),
		},
		SiteURL:   cfg.SiteURL,
		UploadDir: uploadDir,
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             cfg.RateLimitBurst,
			RequestsPerSecond: cfg.RateLimitRPS,
			ClientTTL:         rateLimitClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	if openAccess(cfg) {
		deps.Logger.Warn("no admin credentials configured; admin access is open in development")
	}

	cleanup := func() error {
		httpServer.Close()
		indexErr := index.Close()
		if err := appdb.Close(db); err != nil {
			return err
		}
		if indexErr != nil {
			return eris.Wrap(indexErr, "closing search index")
		}
		return nil
	}

	return Result{
		Blog:       service,
		HTTPServer: httpServer,
		Database:   db,
		Search:     index,
		Cleanup:    cleanup,
	}, nil
}

// buildGenerator returns nil without an API key; info post generation then
// reports itself unavailable.
func buildGenerator(cfg *config.Config, logger *logrus.Logger) (llm.Generator, error) {
	if cfg.LLMAPIKey == "" {
		logger.Info("OPENAI_API_KEY not set; info post generation disabled")
		return nil, nil
	}

	client, err := llm.NewClient(llm.ClientOptions{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMEndpoint,
		Logger:  logger,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating llm client")
	}

	generator, err := llm.NewGenerator(llm.GeneratorOptions{
		Client: client,
		Model:  cfg.LLMModel,
	})
	if err != nil {
		return nil, eris.Wrap(err, "initialising llm generator")
	}
	return generator, nil
}

// buildBucket picks Supabase Storage when configured and the local upload
// directory otherwise. The returned directory is served under /uploads/.
func buildBucket(cfg *config.Config, logger *logrus.Logger) (storage.Bucket, string, error) {
	if cfg.UsesSupabaseStorage() {
		bucket, err := storage.NewSupabaseBucket(storage.SupabaseOptions{
			BaseURL:    cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.StorageBucket,
			Logger:     logger,
		})
		if err != nil {
			return nil, "", eris.Wrap(err, "creating supabase bucket")
		}
		return bucket, "", nil
	}

	bucket, err := storage.NewLocalBucket(cfg.UploadDir, uploadsURLPrefix)
	if err != nil {
		return nil, "", eris.Wrap(err, "creating local upload bucket")
	}
	return bucket, bucket.Dir(), nil
}

func openAccess(cfg *config.Config) bool {
	return cfg.IsDevelopment() && cfg.AdminSecretKey == "" && (cfg.AdminEmail == "" || cfg.AdminPassword == "")
}
