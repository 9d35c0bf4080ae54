package store

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/withObsrvr/tainit-daily/internal/histogram"
	"github.com/withObsrvr/tainit-daily/internal/tables"
)

// dialect holds the SQL differences between backends.
type dialect struct {
	name       string
	driverName string // database/sql driver, empty for pgx

	quote       func(ident string) string
	placeholder func(n int) string // n is 1-based
	dateArg     func(t time.Time) any

	// conflict renders the clause that turns the insert into an upsert.
	conflict func(d dialect, updates []string) string

	columnTypes map[string]string
}

var postgresDialect = dialect{
	name:        "postgres",
	quote:       doubleQuote,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	dateArg:     func(t time.Time) any { return t },
	conflict: func(d dialect, updates []string) string {
		return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", d.keyList(), d.assignments(updates, "EXCLUDED.%s"))
	},
	columnTypes: map[string]string{
		"date": "DATE", "key": "VARCHAR(100)", "text20": "VARCHAR(20)", "text50": "VARCHAR(50)",
		"band": "VARCHAR(10)", "sector": "SMALLINT", "float": "DOUBLE PRECISION", "count": "BIGINT",
	},
}

var mysqlDialect = dialect{
	name:        "mysql",
	driverName:  "mysql",
	quote:       func(ident string) string { return "`" + strings.ReplaceAll(ident, ".", "`.`") + "`" },
	placeholder: func(int) string { return "?" },
	dateArg:     func(t time.Time) any { return t.Format(tables.DateLayout) },
	conflict: func(d dialect, updates []string) string {
		return " ON DUPLICATE KEY UPDATE " + d.assignments(updates, "VALUES(%s)")
	},
	columnTypes: map[string]string{
		"date": "DATE", "key": "VARCHAR(100)", "text20": "VARCHAR(20)", "text50": "VARCHAR(50)",
		"band": "VARCHAR(10)", "sector": "TINYINT", "float": "DOUBLE", "count": "BIGINT",
	},
}

var sqliteDialect = dialect{
	name:        "sqlite",
	driverName:  "sqlite",
	quote:       doubleQuote,
	placeholder: func(int) string { return "?" },
	dateArg:     func(t time.Time) any { return t.Format(tables.DateLayout) },
	conflict: func(d dialect, updates []string) string {
		return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", d.keyList(), d.assignments(updates, "excluded.%s"))
	},
	columnTypes: map[string]string{
		"date": "TEXT", "key": "TEXT", "text20": "TEXT", "text50": "TEXT",
		"band": "TEXT", "sector": "INTEGER", "float": "REAL", "count": "INTEGER",
	},
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, ".", `"."`) + `"`
}

// columnKinds maps output columns to abstract types resolved per dialect.
var columnKinds = map[string]string{
	tables.ColDateID:    "date",
	tables.ColCell:      "key",
	tables.ColSiteID:    "text20",
	tables.ColSiteName:  "text50",
	tables.ColSector:    "sector",
	tables.ColBand:      "band",
	tables.ColNeID:      "text20",
	tables.ColDistr50:   "float",
	tables.ColDistr80:   "float",
	tables.ColDistr90:   "float",
	tables.ColDistr95:   "float",
	tables.ColDistr100:  "float",
	tables.ColTotSample: "count",
}

func (d dialect) keyList() string {
	keys := make([]string, len(tables.KeyColumns))
	for i, k := range tables.KeyColumns {
		keys[i] = d.quote(k)
	}
	return strings.Join(keys, ", ")
}

func (d dialect) assignments(cols []string, valueFormat string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		q := d.quote(c)
		parts[i] = q + " = " + fmt.Sprintf(valueFormat, q)
	}
	return strings.Join(parts, ", ")
}

// nonKeyColumns returns the columns rewritten on conflict.
func nonKeyColumns() []string {
	out := make([]string, 0, len(tables.Header))
	for _, c := range tables.Header {
		if c == tables.ColDateID || c == tables.ColCell {
			continue
		}
		out = append(out, c)
	}
	return out
}

// upsertSQL renders a multi-row upsert for rows records.
func (d dialect) upsertSQL(table string, rows int) string {
	cols := make([]string, len(tables.Header))
	for i, c := range tables.Header {
		cols[i] = d.quote(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.quote(table), strings.Join(cols, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range tables.Header {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	sb.WriteString(d.conflict(d, nonKeyColumns()))
	return sb.String()
}

// upsertArgs flattens records into statement arguments in Header order.
func (d dialect) upsertArgs(records []tables.DailyCellRecord) []any {
	args := make([]any, 0, len(records)*len(tables.Header))
	for _, r := range records {
		args = append(args,
			d.dateArg(r.DateID),
			r.Cell,
			nullIfSentinel(r.SiteID),
			nullIfSentinel(r.SiteName),
			r.Sector,
			nullIfSentinel(string(r.Band)),
			nullIfSentinel(r.NeID),
		)
		for _, p := range r.Percentiles() {
			args = append(args, nullableFloat(p))
		}
		args = append(args, r.TotSample)
	}
	return args
}

// purgeSQL renders the delete statement and its arguments for req.
func (d dialect) purgeSQL(table string, req PurgeRequest) (string, []any) {
	q := "DELETE FROM " + d.quote(table)
	switch req.Mode {
	case PurgeDateRange:
		return q + fmt.Sprintf(" WHERE %s BETWEEN %s AND %s", d.quote(tables.ColDateID), d.placeholder(1), d.placeholder(2)),
			[]any{d.dateArg(req.From), d.dateArg(req.To)}
	case PurgeSite:
		return q + fmt.Sprintf(" WHERE %s = %s", d.quote(tables.ColSiteID), d.placeholder(1)),
			[]any{req.SiteID}
	default:
		return q, nil
	}
}

// createTableSQL renders the table definition.
func (d dialect) createTableSQL(table string) string {
	defs := make([]string, 0, len(tables.Header)+1)
	for _, c := range tables.Header {
		def := d.quote(c) + " " + d.columnTypes[columnKinds[c]]
		if c == tables.ColDateID || c == tables.ColCell {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, "PRIMARY KEY ("+d.keyList()+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quote(table), strings.Join(defs, ",\n\t"))
}

// nullIfSentinel maps the textual NULL marker to a SQL NULL.
func nullIfSentinel(s string) any {
	if s == histogram.NullSentinel {
		return nil
	}
	return s
}

func nullableFloat(p *float64) any {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	return *p
}
