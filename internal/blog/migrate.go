package blog

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate creates or updates the posts and settings tables. On Postgres it
// also adds a GIN index over tags.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	entry := logrus.NewEntry(discardIfNil(logger)).WithFields(logrus.Fields{
		"component": "blog.migrate",
		"dialect":   db.Dialector.Name(),
	})
	entry.Info("applying blog schema")

	tx := db.WithContext(ctx)
	if err := tx.AutoMigrate(&Post{}, &Settings{}); err != nil {
		entry.WithField("error", err.Error()).Error("blog schema migration failed")
		return eris.Wrap(err, "auto migrating blog schema")
	}

	if db.Dialector.Name() == "postgres" {
		if err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_posts_tags ON posts USING GIN (tags)").Error; err != nil {
			entry.WithField("error", err.Error()).Error("creating tags index failed")
			return eris.Wrap(err, "creating tags index")
		}
	}

	entry.Info("blog schema migration complete")
	return nil
}

func discardIfNil(logger *logrus.Logger) *logrus.Logger {
	if logger != nil {
		return logger
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return quiet
}
