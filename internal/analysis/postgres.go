package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"github.com/project-euler/queryassist/internal/config"
	"github.com/project-euler/queryassist/internal/models"
)

// ErrUnknownTable is returned when a table is not listed in the schema
var ErrUnknownTable = errors.New("unknown table")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresSource reads whole tables out of one Postgres schema
type PostgresSource struct {
	db       *sql.DB
	schema   string
	rowLimit int
	logger   *slog.Logger
}

// DSN renders the lib/pq connection string
func DSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// OpenPostgres connects and pings, retrying the ping a few times
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*PostgresSource, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	err = retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "connect to postgres at %s:%d", cfg.Host, cfg.Port)
	}
	return NewPostgresSource(db, cfg.Schema, cfg.RowLimit, logger), nil
}

// NewPostgresSource wraps an open handle
func NewPostgresSource(db *sql.DB, schema string, rowLimit int, logger *slog.Logger) *PostgresSource {
	if logger == nil {
		logger = slog.Default()
	}
	if schema == "" {
		schema = "public"
	}
	return &PostgresSource{
		db:       db,
		schema:   schema,
		rowLimit: rowLimit,
		logger:   logger.With("component", "postgres"),
	}
}

func (p *PostgresSource) Close() error {
	return p.db.Close()
}

// ListTables returns the base tables of the schema, sorted by name
func (p *PostgresSource) ListTables(ctx context.Context) ([]string, error) {
	query, args, err := psql.
		Select("table_name").
		From("information_schema.tables").
		Where(sq.Eq{"table_schema": p.schema}).
		Where(sq.Eq{"table_type": "BASE TABLE"}).
		OrderBy("table_name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build table listing")
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan table name")
		}
		tables = append(tables, name)
	}
	return tables, errors.Wrap(rows.Err(), "list tables")
}

// ReadTable loads up to the row limit from a listed table
func (p *PostgresSource) ReadTable(ctx context.Context, table string) (*Dataset, error) {
	tables, err := p.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, table) {
		return nil, errors.Wrapf(ErrUnknownTable, "%s.%s", p.schema, table)
	}

	b := psql.Select("*").From(pq.QuoteIdentifier(p.schema) + "." + pq.QuoteIdentifier(table))
	if p.rowLimit > 0 {
		b = b.Limit(uint64(p.rowLimit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build table read")
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "read table %s", table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	var out []models.Row
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrapf(err, "scan row of %s", table)
		}
		row := make(models.Row, len(columns))
		for i, col := range columns {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "read table %s", table)
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(ErrEmptyDataset, "table %s", table)
	}

	p.logger.Debug("table read", "table", table, "rows", len(out))
	return &Dataset{
		Name:     DisplayName(table),
		FileName: p.schema + "." + table,
		Format:   FormatPostgres,
		Headers:  columns,
		Rows:     out,
	}, nil
}
