// Package index holds the immutable symptom/disease indexes built once from
// a corpus: disease → symptoms, symptom → diseases, symptom combination →
// diseases, and the TF-IDF vector space. An *Index is never modified after
// Build or FromSnapshot returns, so any number of goroutines may read it
// without locking. Accessors hand out copies.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/vectorspace"
)

type Index struct {
	diseases     map[string]*DiseaseRecord
	diseaseNames []string
	symptomSets  map[string]map[string]struct{}
	symptoms     map[string]*SymptomEntry
	symptomNames []string
	combinations map[ComboKey]*CombinationEntry
	space        *vectorspace.Space
	stats        Stats
	snapshotID   int64
}

// Snapshot is the plain-data form of an Index used for persistence. Slices
// are ordered: diseases and symptoms by name, combinations by key.
type Snapshot struct {
	ID           int64                       `json:"id"`
	Diseases     []DiseaseRecord             `json:"diseases"`
	Symptoms     []SymptomEntry              `json:"symptoms"`
	Combinations []CombinationEntry          `json:"combinations"`
	Vectorizer   vectorspace.VectorizerState `json:"vectorizer"`
	Vectors      []vectorspace.Vector        `json:"vectors"`
	VectorNames  []string                    `json:"vector_names"`
	Stats        Stats                       `json:"stats"`
}

// ID identifies the build (or loaded snapshot) this index came from.
func (x *Index) ID() int64 {
	return x.snapshotID
}

// Space returns the fitted vector space.
func (x *Index) Space() *vectorspace.Space {
	return x.space
}

// Fitted reports whether the vector space is ready for query transforms.
func (x *Index) Fitted() bool {
	return x != nil && x.space.Fitted()
}

// DiseaseNames returns every disease, sorted.
func (x *Index) DiseaseNames() []string {
	return append([]string(nil), x.diseaseNames...)
}

// SymptomNames returns every known symptom token, sorted.
func (x *Index) SymptomNames() []string {
	return append([]string(nil), x.symptomNames...)
}

// Disease returns a copy of the record for name.
func (x *Index) Disease(name string) (DiseaseRecord, bool) {
	rec, ok := x.diseases[name]
	if !ok {
		return DiseaseRecord{}, false
	}
	return cloneDisease(rec), true
}

// DiseaseSymptoms returns the sorted symptom set of disease name.
func (x *Index) DiseaseSymptoms(name string) []string {
	rec, ok := x.diseases[name]
	if !ok {
		return nil
	}
	return append([]string(nil), rec.Symptoms...)
}

// HasSymptom reports whether disease has symptom in its set.
func (x *Index) HasSymptom(disease, symptom string) bool {
	_, ok := x.symptomSets[disease][symptom]
	return ok
}

// Postings returns the diseases containing symptom with their frequency
// weights, ordered by disease name, and the symptom's IDF weight.
func (x *Index) Postings(symptom string) (PostingList, float64, bool) {
	entry, ok := x.symptoms[symptom]
	if !ok {
		return nil, 0, false
	}
	return entry.Postings.clone(), entry.IDF, true
}

// IDF returns the inverse-document-frequency weight of symptom, 0 when the
// symptom is unknown.
func (x *Index) IDF(symptom string) float64 {
	if entry, ok := x.symptoms[symptom]; ok {
		return entry.IDF
	}
	return 0
}

// Combination returns the diseases carrying every symptom of key with their
// co-occurrence scores.
func (x *Index) Combination(key ComboKey) (PostingList, bool) {
	entry, ok := x.combinations[key]
	if !ok {
		return nil, false
	}
	return entry.Postings.clone(), true
}

// Stats returns a copy of the global frequency statistics.
func (x *Index) Stats() Stats {
	return Stats{
		GlobalSymptomFreq:   cloneCounts(x.stats.GlobalSymptomFreq),
		DiseaseSymptomCount: cloneCounts(x.stats.DiseaseSymptomCount),
	}
}

// Summary reports index sizes and symptoms-per-disease figures.
func (x *Index) Summary() Summary {
	s := Summary{
		TotalDiseases:     len(x.diseases),
		TotalSymptoms:     len(x.symptoms),
		TotalCombinations: len(x.combinations),
	}
	if x.space.Fitted() {
		s.VocabularySize = x.space.Vectorizer().Dimension()
	}
	if len(x.stats.DiseaseSymptomCount) == 0 {
		return s
	}
	total := 0
	first := true
	for _, name := range x.diseaseNames {
		n := x.stats.DiseaseSymptomCount[name]
		total += n
		if first || n > s.MaxSymptomsPerDisease {
			s.MaxSymptomsPerDisease = n
		}
		if first || n < s.MinSymptomsPerDisease {
			s.MinSymptomsPerDisease = n
		}
		first = false
	}
	s.AvgSymptomsPerDisease = float64(total) / float64(len(x.diseaseNames))
	return s
}

// Export copies the index into its plain-data form.
func (x *Index) Export() *Snapshot {
	snap := &Snapshot{
		ID:           x.snapshotID,
		Diseases:     make([]DiseaseRecord, 0, len(x.diseaseNames)),
		Symptoms:     make([]SymptomEntry, 0, len(x.symptomNames)),
		Combinations: make([]CombinationEntry, 0, len(x.combinations)),
		Stats:        x.Stats(),
	}
	for _, name := range x.diseaseNames {
		snap.Diseases = append(snap.Diseases, cloneDisease(x.diseases[name]))
	}
	for _, name := range x.symptomNames {
		e := x.symptoms[name]
		snap.Symptoms = append(snap.Symptoms, SymptomEntry{
			Symptom:  e.Symptom,
			Postings: e.Postings.clone(),
			IDF:      e.IDF,
		})
	}
	keys := make([]ComboKey, 0, len(x.combinations))
	for k := range x.combinations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		e := x.combinations[k]
		snap.Combinations = append(snap.Combinations, CombinationEntry{
			Symptoms: append([]string(nil), e.Symptoms...),
			Postings: e.Postings.clone(),
		})
	}
	if x.space.Fitted() {
		snap.Vectorizer = x.space.Vectorizer().State()
		snap.Vectors = x.space.Rows()
		snap.VectorNames = x.space.Names()
	}
	return snap
}

// FromSnapshot rebuilds an Index from plain data, checking that the parts
// agree with each other. The snapshot is copied; later changes to it do not
// affect the returned index.
func FromSnapshot(snap *Snapshot) (*Index, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	x := newIndex()
	x.snapshotID = snap.ID

	for i := range snap.Diseases {
		rec := cloneDisease(&snap.Diseases[i])
		if rec.Name == "" {
			return nil, fmt.Errorf("disease record %d has no name", i)
		}
		if _, dup := x.diseases[rec.Name]; dup {
			return nil, fmt.Errorf("duplicate disease record %q", rec.Name)
		}
		if !sort.StringsAreSorted(rec.Symptoms) {
			return nil, fmt.Errorf("disease %q symptoms not sorted", rec.Name)
		}
		x.addDisease(&rec)
	}
	sort.Strings(x.diseaseNames)

	for i := range snap.Symptoms {
		e := snap.Symptoms[i]
		if _, dup := x.symptoms[e.Symptom]; dup {
			return nil, fmt.Errorf("duplicate symptom entry %q", e.Symptom)
		}
		if e.IDF < 0 {
			return nil, fmt.Errorf("symptom %q has negative idf %v", e.Symptom, e.IDF)
		}
		for _, p := range e.Postings {
			if !x.HasSymptom(p.Disease, e.Symptom) {
				return nil, fmt.Errorf("symptom %q posting references disease %q without it", e.Symptom, p.Disease)
			}
		}
		x.symptoms[e.Symptom] = &SymptomEntry{Symptom: e.Symptom, Postings: e.Postings.clone(), IDF: e.IDF}
		x.symptomNames = append(x.symptomNames, e.Symptom)
	}
	sort.Strings(x.symptomNames)

	for i := range snap.Combinations {
		e := snap.Combinations[i]
		if n := len(e.Symptoms); n != 2 && n != 3 {
			return nil, fmt.Errorf("combination %d has %d symptoms", i, n)
		}
		key := MakeComboKey(e.Symptoms...)
		x.combinations[key] = &CombinationEntry{Symptoms: key.Symptoms(), Postings: e.Postings.clone()}
	}

	vz, err := vectorspace.Restore(snap.Vectorizer)
	if err != nil {
		return nil, fmt.Errorf("restoring vectorizer: %w", err)
	}
	space, err := vectorspace.NewSpace(vz, snap.Vectors, snap.VectorNames)
	if err != nil {
		return nil, fmt.Errorf("restoring vector space: %w", err)
	}
	if space.Len() != len(x.diseaseNames) {
		return nil, fmt.Errorf("vector space has %d rows for %d diseases", space.Len(), len(x.diseaseNames))
	}
	for i := 0; i < space.Len(); i++ {
		if _, ok := x.diseases[space.Name(i)]; !ok {
			return nil, fmt.Errorf("vector row %d names unknown disease %q", i, space.Name(i))
		}
	}
	x.space = space

	x.stats = Stats{
		GlobalSymptomFreq:   cloneCounts(snap.Stats.GlobalSymptomFreq),
		DiseaseSymptomCount: cloneCounts(snap.Stats.DiseaseSymptomCount),
	}
	return x, nil
}

func newIndex() *Index {
	return &Index{
		diseases:     make(map[string]*DiseaseRecord),
		symptomSets:  make(map[string]map[string]struct{}),
		symptoms:     make(map[string]*SymptomEntry),
		combinations: make(map[ComboKey]*CombinationEntry),
	}
}

func (x *Index) addDisease(rec *DiseaseRecord) {
	set := make(map[string]struct{}, len(rec.Symptoms))
	for _, s := range rec.Symptoms {
		set[s] = struct{}{}
	}
	x.diseases[rec.Name] = rec
	x.symptomSets[rec.Name] = set
	x.diseaseNames = append(x.diseaseNames, rec.Name)
}

func cloneDisease(rec *DiseaseRecord) DiseaseRecord {
	return DiseaseRecord{
		Name:             rec.Name,
		Symptoms:         append([]string(nil), rec.Symptoms...),
		Frequency:        cloneCounts(rec.Frequency),
		TotalOccurrences: rec.TotalOccurrences,
	}
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
