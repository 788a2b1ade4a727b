package index

import (
	"sort"
	"strings"
)

// Posting ties a disease to a weight: the symptom frequency in a symptom
// entry, or the co-occurrence score in a combination entry.
type Posting struct {
	Disease   string `json:"d"`
	Frequency int    `json:"f"`
}

type PostingList []Posting

func (pl PostingList) clone() PostingList {
	if pl == nil {
		return nil
	}
	return append(PostingList(nil), pl...)
}

// DiseaseRecord is everything known about one disease after merging all of
// its source rows. Symptoms is the sorted distinct set; Frequency counts
// occurrences across rows; TotalOccurrences is the sum of Frequency.
type DiseaseRecord struct {
	Name             string         `json:"name"`
	Symptoms         []string       `json:"symptoms"`
	Frequency        map[string]int `json:"frequency"`
	TotalOccurrences int            `json:"total_occurrences"`
}

// SymptomEntry lists the diseases exhibiting a symptom, ordered by disease
// name, and the symptom's inverse-document-frequency weight.
type SymptomEntry struct {
	Symptom  string      `json:"symptom"`
	Postings PostingList `json:"postings"`
	IDF      float64     `json:"idf"`
}

// CombinationEntry lists, for a sorted set of 2 or 3 symptoms, every disease
// having all of them with its summed symptom frequency as the score.
type CombinationEntry struct {
	Symptoms []string    `json:"symptoms"`
	Postings PostingList `json:"postings"`
}

// ComboKey identifies a combination entry: its symptoms sorted and joined
// by the unit separator. tokenizer.Normalize turns control characters into
// spaces, so the separator never occurs inside a normalized symptom.
type ComboKey string

const comboSep = "\x1f"

// MakeComboKey builds the key for symptoms in any order.
func MakeComboKey(symptoms ...string) ComboKey {
	sorted := append([]string(nil), symptoms...)
	sort.Strings(sorted)
	return ComboKey(strings.Join(sorted, comboSep))
}

// Symptoms splits the key back into its sorted symptoms.
func (k ComboKey) Symptoms() []string {
	return strings.Split(string(k), comboSep)
}

// Stats are the global frequency statistics saved alongside the index.
type Stats struct {
	// GlobalSymptomFreq counts the diseases containing each symptom.
	GlobalSymptomFreq map[string]int `json:"global_symptom_freq"`
	// DiseaseSymptomCount is the distinct symptom count per disease.
	DiseaseSymptomCount map[string]int `json:"disease_symptom_count"`
}

// Summary describes the size of an index.
type Summary struct {
	TotalDiseases         int     `json:"total_diseases"`
	TotalSymptoms         int     `json:"total_symptoms"`
	TotalCombinations     int     `json:"total_symptom_combinations"`
	VocabularySize        int     `json:"vocabulary_size"`
	AvgSymptomsPerDisease float64 `json:"avg_symptoms_per_disease"`
	MaxSymptomsPerDisease int     `json:"max_symptoms_per_disease"`
	MinSymptomsPerDisease int     `json:"min_symptoms_per_disease"`
}
