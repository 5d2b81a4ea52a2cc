package di

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/aristath/fundledger/internal/config"
	"github.com/aristath/fundledger/internal/database"
	"github.com/aristath/fundledger/internal/docstore"
)

// InitializeStore opens the configured document store backend
func InitializeStore(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	sc := cfg.Store

	switch sc.Backend {
	case config.BackendSQLite:
		db, err := database.New(database.Config{
			Path:    sc.SQLitePath,
			Profile: database.ProfileLedger,
			Name:    "documents",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize documents database: %w", err)
		}
		store, err := docstore.NewSQLiteStore(db.Conn(), log)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to initialize sqlite document store: %w", err)
		}
		container.DocumentsDB = db
		container.Store = store

	case config.BackendS3:
		client, err := docstore.NewS3Client(ctx, docstore.S3Config{
			Bucket:    sc.Bucket,
			Prefix:    sc.Prefix,
			Region:    sc.S3Region,
			Endpoint:  sc.S3Endpoint,
			AccessKey: sc.S3AccessKey,
			SecretKey: sc.S3SecretKey,
		})
		if err != nil {
			return err
		}
		container.Store = docstore.NewS3Store(client, sc.Bucket, sc.Prefix, log)

	case config.BackendGCS:
		var opts []option.ClientOption
		if sc.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(sc.GCSCredentialsFile))
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create GCS client: %w", err)
		}
		container.Store = docstore.NewGCSStore(client, sc.Bucket, sc.Prefix, log)

	case config.BackendMemory:
		log.Warn().Msg("Using in-memory document store, state is lost on restart")
		container.Store = docstore.NewMemoryStore()

	default:
		return fmt.Errorf("unsupported store backend %q", sc.Backend)
	}

	log.Info().Str("backend", sc.Backend).Str("bucket", sc.Bucket).Msg("Document store initialized")
	return nil
}
