package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mangorocketofficial/tech-blog/internal/app/bootstrap"
	appdb "github.com/mangorocketofficial/tech-blog/internal/db"
)

var (
	generateTopic string
	canonicalSlug bool
)

// migrateCmd applies schema migrations and exits.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadServices()
		if err != nil {
			return err
		}
		defer rt.flush()

		db, err := bootstrap.OpenDatabase(cmd.Context(), rt.dependencies())
		if err != nil {
			return err
		}
		if err := appdb.Close(db); err != nil {
			return err
		}

		rt.logger.Info("migrations applied")
		return nil
	},
}

// generateCmd writes and publishes an AI info post.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and publish an info post from a topic",
	Long: `Generate asks the configured language model for an info post on the
given topic and publishes it immediately in the info category under the
next 테크-N slug. Unpublish it from the admin console to take it down.`,
	Example: `  techblog generate --topic "포핸드 탑스핀의 원리"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := strings.TrimSpace(generateTopic)
		if topic == "" {
			return eris.New("--topic is required")
		}

		return withApp(cmd, func(app bootstrap.Result, logger *logrus.Logger) error {
			post, err := app.Blog.GenerateInfoPost(cmd.Context(), topic)
			if err != nil {
				return eris.Wrap(err, "generating info post")
			}

			logger.WithFields(logrus.Fields{"id": post.ID, "slug": post.Slug}).Info("info post published")
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", post.ID, post.Slug, post.Title)
			return nil
		})
	},
}

// reindexCmd rebuilds the full-text search index.
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from published posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app bootstrap.Result, _ *logrus.Logger) error {
			count, err := app.Blog.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d posts\n", count)
			return nil
		})
	},
}

// nextSlugCmd prints the next free auto slug.
var nextSlugCmd = &cobra.Command{
	Use:   "next-slug",
	Short: "Print the next available post slug",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app bootstrap.Result, _ *logrus.Logger) error {
			next := app.Blog.NextDraftSlug
			if canonicalSlug {
				next = app.Blog.NextCanonicalSlug
			}

			slug, err := next(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), slug)
			return nil
		})
	},
}

// withApp builds the application, runs fn and releases resources.
func withApp(cmd *cobra.Command, fn func(bootstrap.Result, *logrus.Logger) error) error {
	rt, err := loadServices()
	if err != nil {
		return err
	}
	defer rt.flush()

	app, err := bootstrap.Build(cmd.Context(), rt.dependencies())
	if err != nil {
		return eris.Wrap(err, "bootstrapping application")
	}
	defer func() {
		if closeErr := app.Cleanup(); closeErr != nil {
			rt.logger.WithError(closeErr).Error("releasing resources")
		}
	}()

	return fn(app, rt.logger)
}

func init() {
	generateCmd.Flags().StringVarP(&generateTopic, "topic", "t", "", "topic of the info post")
	nextSlugCmd.Flags().BoolVar(&canonicalSlug, "canonical", false, "use the 테크- prefix of generated posts instead of tech-")
}
