package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of pgxpool.Pool the driver needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// tableColumns whitelists the tables the driver will touch and the
// columns an insert may carry. Collection names come from our own code,
// but the whitelist keeps identifier interpolation safe.
var tableColumns = map[string]map[string]bool{
	CollectionClinics: {
		"id": true, "name": true, "address": true,
		"contact_email": true, "phone": true, "created_at": true,
	},
	CollectionAppointments: {
		"id": true, "full_name": true, "email": true, "phone": true,
		"hospital_id": true, "appointment_date": true, "time_slot": true,
		"message": true, "created_at": true,
	},
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Postgres is the self-hosted store driver.
type Postgres struct {
	pool PgxPool
}

// NewPostgres initializes the driver backed by a pgx pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return &Postgres{pool: pool}
}

// NewPostgresWithPool accepts any PgxPool; used by tests.
func NewPostgresWithPool(pool PgxPool) *Postgres {
	return &Postgres{pool: pool}
}

// Query selects all rows and returns them as a JSON array, matching the
// shape the Supabase driver produces.
func (p *Postgres) Query(ctx context.Context, collection string, opts QueryOptions) ([]byte, error) {
	cols, ok := tableColumns[collection]
	if !ok {
		return nil, queryError(collection, ErrUnknownCollection)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", collection)

	args := make([]any, 0, len(opts.Filters))
	if len(opts.Filters) > 0 {
		filterCols := make([]string, 0, len(opts.Filters))
		for col := range opts.Filters {
			filterCols = append(filterCols, col)
		}
		sort.Strings(filterCols)

		clauses := make([]string, 0, len(filterCols))
		for _, col := range filterCols {
			if !cols[col] || !identPattern.MatchString(col) {
				return nil, queryError(collection, fmt.Errorf("unknown filter column %q", col))
			}
			args = append(args, opts.Filters[col])
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
		}
		sb.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}

	if opts.OrderBy != "" {
		if !cols[opts.OrderBy] || !identPattern.MatchString(opts.OrderBy) {
			return nil, queryError(collection, fmt.Errorf("unknown order column %q", opts.OrderBy))
		}
		fmt.Fprintf(&sb, " ORDER BY %s ASC", opts.OrderBy)
	}

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, queryError(collection, err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, queryError(collection, err)
	}
	if records == nil {
		records = []map[string]any{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, queryError(collection, err)
	}
	return data, nil
}

// Insert writes one record. The record is flattened through JSON so the
// driver accepts the same payload shapes the Supabase driver does.
func (p *Postgres) Insert(ctx context.Context, collection string, record any) error {
	cols, ok := tableColumns[collection]
	if !ok {
		return insertError(collection, ErrUnknownCollection)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return insertError(collection, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return insertError(collection, fmt.Errorf("record must be an object: %w", err))
	}
	if len(fields) == 0 {
		return insertError(collection, fmt.Errorf("empty record"))
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	placeholders := make([]string, 0, len(names))
	args := make([]any, 0, len(names))
	for i, name := range names {
		if !cols[name] || !identPattern.MatchString(name) {
			return insertError(collection, fmt.Errorf("unknown column %q", name))
		}
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, fields[name])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		collection, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return insertError(collection, err)
	}
	return nil
}

var _ Client = (*Postgres)(nil)
