package vectorspace

import "fmt"

// Space holds one normalized row per disease, parallel to Names.
type Space struct {
	vectorizer *Vectorizer
	rows       []Vector
	names      []string
}

// Build fits a vectorizer over docs and transforms each into a row. names[i]
// labels docs[i].
func Build(names, docs []string) (*Space, error) {
	if len(names) != len(docs) {
		return nil, fmt.Errorf("vector space needs one name per document: %d names, %d documents", len(names), len(docs))
	}
	vz := Fit(docs)
	rows := make([]Vector, len(docs))
	for i, doc := range docs {
		rows[i] = vz.Transform(doc)
	}
	return &Space{
		vectorizer: vz,
		rows:       rows,
		names:      append([]string(nil), names...),
	}, nil
}

// NewSpace assembles a Space from saved parts, validating that rows and
// names line up and every row fits the vocabulary.
func NewSpace(vz *Vectorizer, rows []Vector, names []string) (*Space, error) {
	if vz == nil {
		return nil, fmt.Errorf("vector space requires a fitted vectorizer")
	}
	if len(rows) != len(names) {
		return nil, fmt.Errorf("vector space has %d rows but %d names", len(rows), len(names))
	}
	for i, row := range rows {
		if !row.valid(vz.Dimension()) {
			return nil, fmt.Errorf("vector space row %d (%s) does not fit vocabulary of %d terms", i, names[i], vz.Dimension())
		}
	}
	return &Space{
		vectorizer: vz,
		rows:       copyRows(rows),
		names:      append([]string(nil), names...),
	}, nil
}

// Fitted reports whether s can transform queries.
func (s *Space) Fitted() bool {
	return s != nil && s.vectorizer != nil
}

func (s *Space) Vectorizer() *Vectorizer {
	return s.vectorizer
}

// Len is the number of disease rows.
func (s *Space) Len() int {
	return len(s.rows)
}

// Name returns the disease label of row i.
func (s *Space) Name(i int) string {
	return s.names[i]
}

// Names returns a copy of the row labels in row order.
func (s *Space) Names() []string {
	return append([]string(nil), s.names...)
}

// Rows returns a deep copy of the disease rows.
func (s *Space) Rows() []Vector {
	return copyRows(s.rows)
}

func copyRows(rows []Vector) []Vector {
	out := make([]Vector, len(rows))
	for i, r := range rows {
		out[i] = Vector{
			Indices: append([]int(nil), r.Indices...),
			Values:  append([]float64(nil), r.Values...),
		}
	}
	return out
}

// Similarities transforms query and returns its cosine similarity against
// every row, in row order. Rows and the query are unit length, so the cosine
// is their dot product.
func (s *Space) Similarities(query string) []float64 {
	q := s.vectorizer.Transform(query)
	sims := make([]float64, len(s.rows))
	if q.Len() == 0 {
		return sims
	}
	for i, row := range s.rows {
		sims[i] = Dot(q, row)
	}
	return sims
}
