// Package pgsource loads comparison tables from PostgreSQL queries.
//
// Either side of a comparison can be a query instead of a file: the result
// columns become the table header and each result row a table row. Values
// are converted to cells the way a spreadsheet would hold them, so a query
// can be compared against an exported workbook.
package pgsource

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetdiff/internal/config"
	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// maxExactInt is the largest integer a float64 holds exactly. Larger
// integers are kept as text so their digits survive.
const maxExactInt = 1 << 53

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect opens a pool for cfg.URL and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Load runs sql and returns its result as a table. Column names come from
// the result's field descriptions.
func Load(ctx context.Context, q Querier, sql string, args ...any) (table.Table, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return table.Table{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	t := table.Table{Columns: make([]string, len(fields))}
	for i, fd := range fields {
		t.Columns[i] = fd.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return table.Table{}, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		row := make(table.Row, len(vals))
		for i, v := range vals {
			row[i] = ToCell(v)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, fmt.Errorf("query rows: %w", err)
	}

	return t, nil
}

// ToCell converts a value decoded by pgx into a cell.
//
//	NULL                     Empty
//	text, varchar            Text ("" is Empty)
//	integers, floats         Number (integers beyond 2^53 stay Text)
//	numeric                  Number
//	bool                     Bool
//	date, timestamp(tz)      Time
//	uuid                     Text in canonical form
//	json, arrays, other      Text
func ToCell(v any) table.Cell {
	switch val := v.(type) {
	case nil:
		return table.EmptyCell()
	case string:
		if val == "" {
			return table.EmptyCell()
		}
		return table.TextCell(val)
	case []byte:
		return ToCell(string(val))
	case bool:
		return table.BoolCell(val)
	case int16:
		return table.NumberCell(float64(val))
	case int32:
		return table.NumberCell(float64(val))
	case int64:
		return intCell(val)
	case int:
		return intCell(int64(val))
	case uint32:
		return table.NumberCell(float64(val))
	case uint64:
		if val > maxExactInt {
			return table.TextCell(strconv.FormatUint(val, 10))
		}
		return table.NumberCell(float64(val))
	case float32:
		return table.NumberCell(float64(val))
	case float64:
		return table.NumberCell(val)
	case pgtype.Numeric:
		return numericCell(val)
	case time.Time:
		return table.TimeCell(val)
	case [16]byte:
		return table.TextCell(uuid.UUID(val).String())
	case fmt.Stringer:
		return ToCell(val.String())
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return table.TextCell(fmt.Sprint(val))
		}
		return table.TextCell(string(b))
	default:
		return table.TextCell(fmt.Sprint(val))
	}
}

func intCell(v int64) table.Cell {
	if v > maxExactInt || v < -maxExactInt {
		return table.TextCell(strconv.FormatInt(v, 10))
	}
	return table.NumberCell(float64(v))
}

func numericCell(n pgtype.Numeric) table.Cell {
	if !n.Valid {
		return table.EmptyCell()
	}
	if n.NaN {
		return table.NumberCell(math.NaN())
	}
	switch n.InfinityModifier {
	case pgtype.Infinity:
		return table.NumberCell(math.Inf(1))
	case pgtype.NegativeInfinity:
		return table.NumberCell(math.Inf(-1))
	}

	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return table.EmptyCell()
	}
	return table.NumberCell(f.Float64)
}
