package cmd

import (
	"context"
	"fmt"

	"tablesync/core/changeset"
	"tablesync/core/config"
	"tablesync/core/database"
	"tablesync/core/dataset"
	"tablesync/core/logger"
	"tablesync/core/portal"
	"tablesync/core/storage"
	"tablesync/core/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Flags for the refresh command
	refreshSource    string
	refreshTarget    string
	refreshService   string
	refreshMethod    string
	refreshIDField   string
	refreshChunkSize int
	refreshExcluded  []string
	refreshProfile   string
	refreshPortalURL string
	refreshUsername  string
	refreshPassword  string
)

// refreshCmd runs one sync from the command line.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Synchronize a target dataset from a source table",
	Long: `Refresh reads the source table and brings the target in step with it.

The target is either another database table (--target) or a remote
feature-service table (--target-service). Remote targets authenticate with
a stored profile (--profile) or an explicit portal login (--portal-url,
--username, --password); the profile wins when both are given.

Examples:
  # Field-level reconciliation into another database table
  refresh --source assets --target assets_mirror --method COMPARE --id-field asset_id

  # Full reload of a remote feature-service table
  refresh --source assets --target-service https://portal.example/rest/services/assets/FeatureServer/0 \
    --method TRUNCATE --id-field asset_id --profile prod`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshSource, "source", "", "Source database table (required)")
	refreshCmd.Flags().StringVar(&refreshTarget, "target", "", "Target database table")
	refreshCmd.Flags().StringVar(&refreshService, "target-service", "", "Target feature-service table URL")
	refreshCmd.Flags().StringVar(&refreshMethod, "method", string(sync.MethodCompare), "Sync method: TRUNCATE or COMPARE")
	refreshCmd.Flags().StringVar(&refreshIDField, "id-field", "", "Key field for matching records")
	refreshCmd.Flags().IntVar(&refreshChunkSize, "chunk-size", 0, "Records per write batch (0 = default)")
	refreshCmd.Flags().StringSliceVar(&refreshExcluded, "exclude", nil, "Additional fields to exclude from comparison")
	refreshCmd.Flags().StringVar(&refreshProfile, "profile", "", "Stored portal profile name")
	refreshCmd.Flags().StringVar(&refreshPortalURL, "portal-url", "", "Portal URL for explicit login")
	refreshCmd.Flags().StringVar(&refreshUsername, "username", "", "Portal username for explicit login")
	refreshCmd.Flags().StringVar(&refreshPassword, "password", "", "Portal password for explicit login")

	RootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	resolver := portal.NewResolver(&portal.ProfileStore{Path: cfg.Portal.ProfilesPath}, l)

	// Mirror log events into the configured feature-service log table
	if cfg.Portal.LogTableURL != "" {
		l = attachLogTable(ctx, l, resolver, cfg.Portal)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	changesets, err := buildChangesetWriter(cfg, l)
	if err != nil {
		return err
	}

	engine := sync.NewEngine(l, resolver, changesets)

	idField := refreshIDField
	if idField == "" {
		idField = cfg.Sync.IDField
	}
	chunk := refreshChunkSize
	if chunk == 0 {
		chunk = cfg.Sync.ChunkSize
	}

	spec := sync.Spec{
		Method:         sync.Method(refreshMethod),
		IDField:        idField,
		ChunkSize:      chunk,
		ExcludedFields: refreshExcluded,
	}
	if refreshSource != "" {
		spec.Source = dataset.NewSQLTable(db, refreshSource, idField)
	}
	if refreshTarget != "" {
		spec.Target = dataset.NewSQLTable(db, refreshTarget, idField)
	}
	if refreshService != "" {
		spec.TargetService = refreshService
		creds := credentialsFromFlags()
		spec.Credentials = &creds
	}

	result := engine.Refresh(ctx, spec)
	printRunReport(l, result)

	// Old changesets are pruned after every run so retention needs no
	// separate scheduler.
	if changesets != nil {
		if err := changesets.Prune(ctx); err != nil {
			l.Warn("Failed to prune old changesets", zap.Error(err))
		}
	}

	if result.Err != nil {
		return result.Err
	}
	return nil
}

// credentialsFromFlags picks the credential form; a profile wins when both
// forms are given.
func credentialsFromFlags() portal.CredentialSpec {
	if refreshProfile != "" {
		return portal.ProfileCredentials(refreshProfile)
	}
	return portal.LoginCredentials(refreshPortalURL, refreshUsername, refreshPassword)
}

// buildChangesetWriter assembles the changeset writer, with object-storage
// archival when enabled.
func buildChangesetWriter(cfg *config.Config, l *zap.Logger) (*changeset.Writer, error) {
	var store storage.Client
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		store = client
	}
	return changeset.New(cfg.Changeset, store, cfg.Storage.Bucket, l), nil
}

// attachLogTable tees info-and-above events into the remote log table.
// Failure to reach the table never blocks the run.
func attachLogTable(ctx context.Context, l *zap.Logger, resolver *portal.Resolver, cfg portal.Config) *zap.Logger {
	var session *portal.Session
	if cfg.LogProfile != "" {
		s, err := resolver.Resolve(ctx, portal.ProfileCredentials(cfg.LogProfile))
		if err != nil {
			l.Warn("Log table login failed, remote logging disabled", zap.Error(err))
			return l
		}
		session = s
	}

	table := portal.NewFeatureTable(cfg.LogTableURL, "objectid", session)
	return logger.Attach(l, logger.NewRemoteCore(table, l, zapcore.InfoLevel))
}

// printRunReport logs the run summary.
func printRunReport(l *zap.Logger, result *sync.Result) {
	l.Info("Run report",
		zap.String("run_id", result.RunID),
		zap.String("state", string(result.State)),
		zap.String("method", string(result.Method)),
		zap.Int("inserts", result.Inserts),
		zap.Int("updates", result.Updates),
		zap.Int("deletes", result.Deletes),
		zap.Int("record_count", result.RecordCount),
		zap.Duration("elapsed", result.Elapsed),
	)

	for _, o := range result.FailedBatches() {
		l.Warn("Failed batch",
			zap.String("operation", string(o.Kind)),
			zap.Int("batch", o.BatchIndex),
			zap.Int("attempted", o.Attempted),
			zap.Int("succeeded", o.Succeeded),
			zap.Error(o.Err),
		)
	}
}
