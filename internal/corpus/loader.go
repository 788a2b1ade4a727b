package corpus

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
)

const progressEvery = 1000

// Loader reads source tables into Records.
type Loader struct {
	opts   Options
	logger *slog.Logger
}

func NewLoader(opts Options) *Loader {
	return &Loader{
		opts:   opts.withDefaults(),
		logger: slog.Default().With("component", "corpus-loader"),
	}
}

// LoadFile opens path and reads it as CSV.
func (l *Loader) LoadFile(path string) ([]Record, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()
	records, stats, err := l.LoadCSV(f)
	if err != nil {
		return nil, stats, fmt.Errorf("loading %s: %w", path, err)
	}
	return records, stats, nil
}

// LoadCSV reads a header row followed by data rows. Rows that fail to parse
// or carry no usable disease/symptoms are skipped. Only a missing header or
// disease column, or an I/O failure, is returned as an error.
func (l *Loader) LoadCSV(r io.Reader) ([]Record, LoadStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, LoadStats{}, fmt.Errorf("%w: empty input, header row required", apperrors.ErrInvalidCorpus)
		}
		return nil, LoadStats{}, fmt.Errorf("%w: reading header: %v", apperrors.ErrInvalidCorpus, err)
	}
	lay, ok := resolveLayout(header, l.opts)
	if !ok {
		return nil, LoadStats{}, fmt.Errorf("%w: no %q column in header", apperrors.ErrInvalidCorpus, l.opts.DiseaseColumn)
	}
	l.logger.Info("corpus header resolved",
		"disease_column", l.opts.DiseaseColumn,
		"symptom_columns", len(lay.symptoms),
	)

	var (
		records []Record
		stats   LoadStats
	)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.RowsRead++
				stats.RowsSkipped++
				l.logger.Warn("skipping malformed corpus row", "line", parseErr.Line, "error", parseErr.Err)
				continue
			}
			return nil, stats, fmt.Errorf("reading corpus row: %w", err)
		}
		stats.RowsRead++
		if stats.RowsRead%progressEvery == 0 {
			l.logger.Debug("processing corpus rows", "rows", stats.RowsRead)
		}
		rec, ok := buildRecord(fields, lay)
		if !ok {
			stats.RowsSkipped++
			continue
		}
		records = append(records, rec)
	}
	stats.Records = len(records)
	l.logger.Info("corpus loaded",
		"rows", stats.RowsRead,
		"skipped", stats.RowsSkipped,
		"records", stats.Records,
	)
	return records, stats, nil
}

// LoadSQL reads every row of table with the same column rules as LoadCSV.
// Non-text columns are converted to their string form; NULLs count as empty.
func (l *Loader) LoadSQL(ctx context.Context, db *sql.DB, table string) ([]Record, LoadStats, error) {
	if table == "" {
		return nil, LoadStats{}, fmt.Errorf("%w: table name is required", apperrors.ErrInvalidCorpus)
	}
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+pq.QuoteIdentifier(table))
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("querying corpus table %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("reading corpus columns: %w", err)
	}
	lay, ok := resolveLayout(columns, l.opts)
	if !ok {
		return nil, LoadStats{}, fmt.Errorf("%w: no %q column in table %s", apperrors.ErrInvalidCorpus, l.opts.DiseaseColumn, table)
	}

	var (
		records []Record
		stats   LoadStats
	)
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	fields := make([]string, len(columns))
	for rows.Next() {
		stats.RowsRead++
		if err := rows.Scan(dest...); err != nil {
			stats.RowsSkipped++
			l.logger.Warn("skipping unreadable corpus row", "row", stats.RowsRead, "error", err)
			continue
		}
		for i, v := range values {
			fields[i] = ""
			if v.Valid {
				fields[i] = v.String
			}
		}
		rec, ok := buildRecord(fields, lay)
		if !ok {
			stats.RowsSkipped++
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, stats, fmt.Errorf("iterating corpus table %s: %w", table, err)
	}
	stats.Records = len(records)
	l.logger.Info("corpus loaded from table",
		"table", table,
		"rows", stats.RowsRead,
		"skipped", stats.RowsSkipped,
		"records", stats.Records,
	)
	return records, stats, nil
}
