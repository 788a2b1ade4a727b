// Package corpus turns a wide disease table (one "disease" column followed by
// numbered symptom columns) into normalized records for the index builder.
// Rows that cannot be used are skipped and counted, never fatal.
package corpus

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/tokenizer"
)

// Record is one usable source row. The same disease may appear in many
// records; merging happens in the index builder.
type Record struct {
	Disease  string   `json:"disease"`
	Symptoms []string `json:"symptoms"`
}

// LoadStats summarises a load.
type LoadStats struct {
	RowsRead    int `json:"rows_read"`
	RowsSkipped int `json:"rows_skipped"`
	Records     int `json:"records"`
}

// Options names the columns of the source table.
type Options struct {
	DiseaseColumn string
	SymptomPrefix string
	// MaxSymptoms ignores symptom columns numbered above it. 0 keeps all.
	MaxSymptoms int
}

// DefaultOptions matches the Disease, Symptom_1..Symptom_17 layout.
func DefaultOptions() Options {
	return Options{
		DiseaseColumn: "Disease",
		SymptomPrefix: "Symptom_",
		MaxSymptoms:   17,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DiseaseColumn == "" {
		o.DiseaseColumn = def.DiseaseColumn
	}
	if o.SymptomPrefix == "" {
		o.SymptomPrefix = def.SymptomPrefix
	}
	if o.MaxSymptoms < 0 {
		o.MaxSymptoms = 0
	}
	return o
}

// layout holds the resolved column positions of a header row.
type layout struct {
	disease  int
	symptoms []int
}

type numberedColumn struct {
	pos int
	num int
}

func resolveLayout(header []string, opts Options) (layout, bool) {
	l := layout{disease: -1}
	prefix := strings.ToLower(opts.SymptomPrefix)
	diseaseCol := strings.ToLower(opts.DiseaseColumn)
	var cols []numberedColumn
	for pos, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if name == diseaseCol && l.disease < 0 {
			l.disease = pos
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		num, err := strconv.Atoi(name[len(prefix):])
		if err != nil || num < 1 {
			continue
		}
		if opts.MaxSymptoms > 0 && num > opts.MaxSymptoms {
			continue
		}
		cols = append(cols, numberedColumn{pos: pos, num: num})
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].num < cols[j].num })
	for _, c := range cols {
		l.symptoms = append(l.symptoms, c.pos)
	}
	return l, l.disease >= 0
}

// field returns fields[pos], or "" when the row is shorter than the header.
func field(fields []string, pos int) string {
	if pos < 0 || pos >= len(fields) {
		return ""
	}
	return fields[pos]
}

// buildRecord normalizes one row. ok is false when the disease is empty or
// no symptom survived.
func buildRecord(fields []string, l layout) (Record, bool) {
	disease := tokenizer.Normalize(field(fields, l.disease))
	if tokenizer.IsNull(disease) {
		return Record{}, false
	}
	symptoms := make([]string, 0, len(l.symptoms))
	for _, pos := range l.symptoms {
		s := tokenizer.Normalize(field(fields, pos))
		if tokenizer.IsNull(s) {
			continue
		}
		symptoms = append(symptoms, s)
	}
	if len(symptoms) == 0 {
		return Record{}, false
	}
	return Record{Disease: disease, Symptoms: symptoms}, true
}
