package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
)

const datasetCSV = `Disease,Symptom_1,Symptom_2,Symptom_3
Flu,fever,cough,fatigue
Cold,cough,runny_nose,
`

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"symptomctl"}, args...))
	return out.String(), err
}

func setup(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SSP_INDEXER_DATA_DIR", filepath.Join(dir, "index"))
	csvPath := filepath.Join(dir, "dataset.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(datasetCSV), 0o644))

	out, err := runApp(t, "build", "--csv", csvPath)
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &event))
	assert.NotZero(t, event["snapshot_id"])
}

func TestQueryCommand(t *testing.T) {
	setup(t)
	out, err := runApp(t, "query", "-k", "2", "Fever,cough")
	require.NoError(t, err)

	var results []executor.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "flu", results[0].Disease)
	assert.Equal(t, 2.7971, results[0].Score)
}

func TestSuggestCommand(t *testing.T) {
	setup(t)
	out, err := runApp(t, "suggest", "--top", "3", "fever")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"cough", "fatigue"}, got)
}

func TestCorrectCommand(t *testing.T) {
	setup(t)
	out, err := runApp(t, "correct", "coughh")
	require.NoError(t, err)
	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"cough"}, got)

	_, err = runApp(t, "correct")
	assert.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	setup(t)
	out, err := runApp(t, "stats")
	require.NoError(t, err)
	var got struct {
		Summary struct {
			TotalDiseases int `json:"total_diseases"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Summary.TotalDiseases)
}

func TestQueryWithoutSnapshot(t *testing.T) {
	t.Setenv("SSP_INDEXER_DATA_DIR", filepath.Join(t.TempDir(), "index"))
	_, err := runApp(t, "query", "fever")
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
}
