// Package benchmark holds Go benchmarks for index building, snapshot I/O and
// the query path over synthetic disease corpora.
package benchmark

import (
	"fmt"
	"math/rand"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
)

// syntheticCorpus returns rows for diseases diseases drawn from a pool of
// symptoms symptoms. Each disease appears in two rows of 4 to 10 symptoms.
// The seed is fixed so runs are comparable.
func syntheticCorpus(diseases, symptoms int) []corpus.Record {
	rng := rand.New(rand.NewSource(42))
	pool := make([]string, symptoms)
	for i := range pool {
		pool[i] = fmt.Sprintf("symptom_%d", i)
	}
	records := make([]corpus.Record, 0, diseases*2)
	for d := 0; d < diseases; d++ {
		name := fmt.Sprintf("disease_%d", d)
		for row := 0; row < 2; row++ {
			n := 4 + rng.Intn(7)
			syms := make([]string, n)
			for i := range syms {
				syms[i] = pool[rng.Intn(len(pool))]
			}
			records = append(records, corpus.Record{Disease: name, Symptoms: syms})
		}
	}
	return records
}
