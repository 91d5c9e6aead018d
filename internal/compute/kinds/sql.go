package kinds

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"sidas/internal/asset"
	"sidas/internal/compute"
	"sidas/internal/dataset"
)

const defaultDSNEnv = "SIDAS_DATABASE_URL"

type sqlKind struct{}

func (sqlKind) Name() string  { return "sql" }
func (sqlKind) Title() string { return "PostgreSQL query" }
func (sqlKind) Description() string {
	return "Runs a read-only query against PostgreSQL and emits one record per row.\n" +
		"The connection string comes from database_url, or from the environment\n" +
		"variable named by database_url_env (default " + defaultDSNEnv + ").\n\n" +
		"Example:\n" +
		"  - name: active_customers\n" +
		"    kind: sql\n" +
		"    params:\n" +
		"      query: SELECT id, email FROM customers WHERE active"
}

func (sqlKind) Options() []compute.Option {
	return []compute.Option{
		{Name: "query", Description: "SQL statement to run.", Required: true},
		{Name: "database_url", Description: "PostgreSQL connection string."},
		{Name: "database_url_env", Description: "Environment variable holding the connection string.", Default: defaultDSNEnv},
	}
}

func (k sqlKind) Build(params map[string]any, _ []string, _ compute.Env) (asset.ComputeFunc, error) {
	p := compute.Params(params)
	if err := rejectUnknown(k, p); err != nil {
		return nil, err
	}
	query, err := p.RequiredString("query")
	if err != nil {
		return nil, err
	}
	dsn, err := p.String("database_url")
	if err != nil {
		return nil, err
	}
	envName, err := p.String("database_url_env")
	if err != nil {
		return nil, err
	}
	if envName == "" {
		envName = defaultDSNEnv
	}

	return func(ctx context.Context, name string, _ map[string]any) (any, error) {
		conn := dsn
		if conn == "" {
			conn = os.Getenv(envName)
		}
		if conn == "" {
			return nil, fmt.Errorf("no database connection configured (set database_url or %s)", envName)
		}
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return queryRecords(ctx, db, query)
	}, nil
}

func queryRecords(ctx context.Context, db *sql.DB, query string) (dataset.Records, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := dataset.Records{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(dataset.Record, len(cols))
		for i, c := range cols {
			rec[c] = cellValue(vals[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// cellValue maps driver values onto JSON-friendly types.
func cellValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

func init() {
	compute.Register(sqlKind{})
}
