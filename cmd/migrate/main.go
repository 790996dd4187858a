package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/smart-finance/internal/config"
	"github.com/dvloznov/smart-finance/internal/logger"
	"github.com/dvloznov/smart-finance/migrations"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	var (
		envFile   = flag.String("env-file", ".env", "Optional dotenv file read before the environment")
		projectID = flag.String("project", "", "GCP project ID (defaults to STORE_BIGQUERY_PROJECT_ID)")
		datasetID = flag.String("dataset", "", "BigQuery dataset ID (defaults to STORE_BIGQUERY_DATASET)")
		appliedBy = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		dir       = flag.String("migrations", "", "Read migrations from this directory instead of the embedded set")
		dryRun    = flag.Bool("dry-run", false, "List pending migrations without applying them")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if *projectID == "" {
		*projectID = cfg.Store.BigQuery.ProjectID
	}
	if *datasetID == "" {
		*datasetID = cfg.Store.BigQuery.Dataset
	}
	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag or STORE_BIGQUERY_PROJECT_ID is required")
	}

	var source fs.FS
	if *dir != "" {
		source = os.DirFS(*dir)
	} else {
		source, err = fs.Sub(migrations.BigQuery, "bigquery")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open embedded migrations")
		}
	}

	ctx := logger.WithContext(context.Background(), log)

	all, err := readMigrations(source, *projectID, *datasetID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(all)).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	r := &runner{client: client, projectID: *projectID, datasetID: *datasetID, appliedBy: *appliedBy}
	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	if err := r.ensureSchemaMigrationsTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := r.appliedMigrations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	todo, drifted := pending(all, applied)
	for _, m := range drifted {
		log.Warn().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration changed since it ran")
	}

	if len(todo) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
		return
	}

	for _, m := range todo {
		mlog := log.With().Int("version", m.Version).Str("name", m.Name).Logger()
		if *dryRun {
			mlog.Info().Msg("Pending")
			continue
		}

		mlog.Info().Msg("Applying")
		if err := r.exec(ctx, m.SQL, nil); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to execute migration")
		}
		if err := r.record(ctx, m); err != nil {
			mlog.Fatal().Err(err).Msg("Failed to record migration")
		}
		mlog.Info().Msg("Applied")
	}

	if !*dryRun {
		log.Info().Int("count", len(todo)).Msg("Successfully applied migrations")
	}
}

// readMigrations reads the numbered files at the root of fsys, substituting
// the project and dataset placeholders. The checksum is taken over the file
// before substitution.
func readMigrations(fsys fs.FS, projectID, datasetID string, log zerolog.Logger) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("readMigrations: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid format")
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("readMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("readMigrations: %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		out = append(out, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// pending returns the migrations not yet applied, in version order, and the
// applied ones whose file checksum no longer matches.
func pending(all []Migration, applied []AppliedMigration) (todo, drifted []Migration) {
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}
	for _, m := range all {
		am, ok := byVersion[m.Version]
		if !ok {
			todo = append(todo, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			drifted = append(drifted, m)
		}
	}
	return todo, drifted
}

type runner struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
}

func (r *runner) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", r.projectID, r.datasetID)
}

func (r *runner) ensureSchemaMigrationsTable(ctx context.Context) error {
	return r.exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+r.table()+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)`, nil)
}

func (r *runner) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := r.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + r.table() + `
		ORDER BY version ASC`)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (r *runner) record(ctx context.Context, m Migration) error {
	return r.exec(ctx, `
		INSERT INTO `+r.table()+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`,
		[]bigquery.QueryParameter{
			{Name: "version", Value: m.Version},
			{Name: "name", Value: m.Name},
			{Name: "checksum", Value: m.Checksum},
			{Name: "applied_by", Value: r.appliedBy},
		})
}

func (r *runner) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := r.client.Query(sql)
	q.Parameters = params
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
