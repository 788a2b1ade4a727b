package vectorspace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitSmoothIDF(t *testing.T) {
	vz := Fit([]string{"cough fatigue fever", "cough runny_nose"})

	state := vz.State()
	assert.Equal(t, []string{"cough", "fatigue", "fever", "runny_nose"}, state.Terms)
	rare := math.Log(3.0/2.0) + 1
	assert.InDeltaSlice(t, []float64{1, rare, rare, rare}, state.IDF, 1e-12)
}

func TestTransformNormalizesAndIgnoresUnknownTerms(t *testing.T) {
	vz := Fit([]string{"cough fatigue fever", "cough runny_nose"})

	v := vz.Transform("fever cough headache")
	assert.Equal(t, []int{0, 2}, v.Indices)
	assert.InDelta(t, 1.0, Norm(v), 1e-12)

	zero := vz.Transform("headache x")
	assert.Zero(t, zero.Len())
}

func TestSimilarities(t *testing.T) {
	space, err := Build(
		[]string{"flu", "cold"},
		[]string{"cough fatigue fever", "cough runny_nose"},
	)
	require.NoError(t, err)

	rare := math.Log(3.0/2.0) + 1
	queryNorm := math.Sqrt(1 + rare*rare)
	fluNorm := math.Sqrt(1 + 2*rare*rare)
	wantFlu := (1 + rare*rare) / (queryNorm * fluNorm)
	wantCold := 1 / (queryNorm * queryNorm)

	sims := space.Similarities("fever cough")
	require.Len(t, sims, 2)
	assert.InDelta(t, wantFlu, sims[0], 1e-12)
	assert.InDelta(t, wantCold, sims[1], 1e-12)

	assert.Equal(t, []float64{0, 0}, space.Similarities("unknown"))
}

func TestBuildEmpty(t *testing.T) {
	space, err := Build(nil, nil)
	require.NoError(t, err)
	assert.True(t, space.Fitted())
	assert.Zero(t, space.Len())
	assert.Empty(t, space.Similarities("fever"))
}

func TestBuildMismatchedLengths(t *testing.T) {
	_, err := Build([]string{"flu"}, nil)
	assert.Error(t, err)
}

func TestRestoreRoundTrip(t *testing.T) {
	space, err := Build([]string{"flu", "cold"}, []string{"cough fatigue fever", "cough runny_nose"})
	require.NoError(t, err)

	vz, err := Restore(space.Vectorizer().State())
	require.NoError(t, err)
	restored, err := NewSpace(vz, space.Rows(), space.Names())
	require.NoError(t, err)

	assert.Equal(t, space.Similarities("fever cough"), restored.Similarities("fever cough"))
}

func TestRestoreRejectsBadState(t *testing.T) {
	_, err := Restore(VectorizerState{Terms: []string{"a", "b"}, IDF: []float64{1}})
	assert.Error(t, err)
	_, err = Restore(VectorizerState{Terms: []string{"b", "a"}, IDF: []float64{1, 1}})
	assert.Error(t, err)

	vz, err := Restore(VectorizerState{Terms: []string{"aa"}, IDF: []float64{1}})
	require.NoError(t, err)
	_, err = NewSpace(vz, []Vector{{Indices: []int{3}, Values: []float64{1}}}, []string{"x"})
	assert.Error(t, err)
	_, err = NewSpace(vz, nil, []string{"x"})
	assert.Error(t, err)
	_, err = NewSpace(nil, nil, nil)
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	a := Vector{Indices: []int{0, 2}, Values: []float64{3, 4}}
	b := Vector{Indices: []int{2, 5}, Values: []float64{2, 0}}
	assert.InDelta(t, 0.8, Cosine(a, b), 1e-12)
	assert.Zero(t, Cosine(a, Vector{}))
}

func TestNilSpaceNotFitted(t *testing.T) {
	var s *Space
	assert.False(t, s.Fitted())
}
