package index

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/vectorspace"
)

// BuildOptions tunes a build.
type BuildOptions struct {
	// MaxComboSymptoms caps how many of a disease's symptoms feed the
	// combination pass. The most frequent symptoms are kept, ties broken by
	// name. 0 means no cap.
	MaxComboSymptoms int
	// ID is stamped on the index and every artifact saved from it. Zero
	// selects the current time in nanoseconds.
	ID     int64
	Logger *slog.Logger
}

// Build runs the disease, symptom, combination, vector and weight passes
// over records. An empty corpus yields an empty index that still answers
// queries (with no results).
func Build(records []corpus.Record, opts BuildOptions) (*Index, error) {
	if opts.MaxComboSymptoms < 0 {
		return nil, fmt.Errorf("max combo symptoms must be >= 0, got %d", opts.MaxComboSymptoms)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "index-builder")

	x := newIndex()
	x.snapshotID = opts.ID
	if x.snapshotID == 0 {
		x.snapshotID = time.Now().UnixNano()
	}

	x.diseasePass(records)
	log.Info("disease pass complete", "records", len(records), "diseases", len(x.diseaseNames))

	x.symptomPass()
	log.Info("symptom pass complete", "symptoms", len(x.symptomNames))

	x.combinationPass(opts.MaxComboSymptoms)
	log.Info("combination pass complete",
		"combinations", len(x.combinations),
		"max_combo_symptoms", opts.MaxComboSymptoms,
	)

	if err := x.vectorPass(); err != nil {
		return nil, fmt.Errorf("vector pass: %w", err)
	}
	log.Info("vector pass complete",
		"rows", x.space.Len(),
		"vocabulary", x.space.Vectorizer().Dimension(),
	)

	x.weightPass()
	log.Info("weight pass complete", "diseases", len(x.diseaseNames))
	return x, nil
}

// diseasePass merges records by disease. A disease's symptom set is the
// union over its records; Frequency counts every occurrence.
func (x *Index) diseasePass(records []corpus.Record) {
	for _, r := range records {
		name := tokenizer.Normalize(r.Disease)
		if name == "" {
			continue
		}
		rec, ok := x.diseases[name]
		if !ok {
			rec = &DiseaseRecord{Name: name, Frequency: make(map[string]int)}
			x.addDisease(rec)
		}
		set := x.symptomSets[name]
		for _, s := range r.Symptoms {
			s = tokenizer.Normalize(s)
			if s == "" {
				continue
			}
			set[s] = struct{}{}
			rec.Frequency[s]++
			rec.TotalOccurrences++
		}
	}
	sort.Strings(x.diseaseNames)

	x.stats.DiseaseSymptomCount = make(map[string]int, len(x.diseaseNames))
	for _, name := range x.diseaseNames {
		rec := x.diseases[name]
		rec.Symptoms = make([]string, 0, len(x.symptomSets[name]))
		for s := range x.symptomSets[name] {
			rec.Symptoms = append(rec.Symptoms, s)
		}
		sort.Strings(rec.Symptoms)
		x.stats.DiseaseSymptomCount[name] = len(rec.Symptoms)
	}
}

// symptomPass inverts the disease index. Postings come out ordered by
// disease name because diseases are visited in sorted order.
func (x *Index) symptomPass() {
	for _, name := range x.diseaseNames {
		rec := x.diseases[name]
		for _, s := range rec.Symptoms {
			entry, ok := x.symptoms[s]
			if !ok {
				entry = &SymptomEntry{Symptom: s}
				x.symptoms[s] = entry
				x.symptomNames = append(x.symptomNames, s)
			}
			entry.Postings = append(entry.Postings, Posting{Disease: name, Frequency: frequencyOf(rec, s)})
		}
	}
	sort.Strings(x.symptomNames)

	x.stats.GlobalSymptomFreq = make(map[string]int, len(x.symptoms))
	for s, entry := range x.symptoms {
		x.stats.GlobalSymptomFreq[s] = len(entry.Postings)
	}
}

// combinationPass indexes every 2- and 3-subset of each disease's symptoms.
func (x *Index) combinationPass(maxSymptoms int) {
	for _, name := range x.diseaseNames {
		rec := x.diseases[name]
		syms := comboCandidates(rec, maxSymptoms)
		n := len(syms)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				x.addCombination(rec, syms[i], syms[j])
				for k := j + 1; k < n; k++ {
					x.addCombination(rec, syms[i], syms[j], syms[k])
				}
			}
		}
	}
}

func (x *Index) addCombination(rec *DiseaseRecord, symptoms ...string) {
	key := MakeComboKey(symptoms...)
	entry, ok := x.combinations[key]
	if !ok {
		entry = &CombinationEntry{Symptoms: key.Symptoms()}
		x.combinations[key] = entry
	}
	score := 0
	for _, s := range symptoms {
		score += frequencyOf(rec, s)
	}
	entry.Postings = append(entry.Postings, Posting{Disease: rec.Name, Frequency: score})
}

// comboCandidates returns the sorted symptoms of rec that take part in the
// combination pass.
func comboCandidates(rec *DiseaseRecord, maxSymptoms int) []string {
	if maxSymptoms == 0 || len(rec.Symptoms) <= maxSymptoms {
		return rec.Symptoms
	}
	ranked := append([]string(nil), rec.Symptoms...)
	sort.SliceStable(ranked, func(i, j int) bool {
		fi, fj := frequencyOf(rec, ranked[i]), frequencyOf(rec, ranked[j])
		if fi != fj {
			return fi > fj
		}
		return ranked[i] < ranked[j]
	})
	kept := ranked[:maxSymptoms]
	sort.Strings(kept)
	return kept
}

// vectorPass fits the TF-IDF space with one document per disease: its
// sorted symptom set joined by spaces.
func (x *Index) vectorPass() error {
	docs := make([]string, len(x.diseaseNames))
	for i, name := range x.diseaseNames {
		docs[i] = strings.Join(x.diseases[name].Symptoms, " ")
	}
	space, err := vectorspace.Build(x.DiseaseNames(), docs)
	if err != nil {
		return err
	}
	x.space = space
	return nil
}

// weightPass sets idf = ln(diseases / diseases containing the symptom),
// clamped at 0.
func (x *Index) weightPass() {
	total := float64(len(x.diseaseNames))
	for _, entry := range x.symptoms {
		entry.IDF = idf(total, float64(len(entry.Postings)))
	}
}

func idf(total, df float64) float64 {
	if df <= 0 || total/df <= 1 {
		return 0
	}
	return math.Log(total / df)
}

func frequencyOf(rec *DiseaseRecord, symptom string) int {
	if f, ok := rec.Frequency[symptom]; ok && f > 0 {
		return f
	}
	return 1
}
