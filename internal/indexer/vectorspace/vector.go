package vectorspace

import "math"

// Vector is a sparse row: Indices are strictly increasing vocabulary
// positions and Values the matching weights.
type Vector struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

// Len is the number of non-zero entries.
func (v Vector) Len() int {
	return len(v.Indices)
}

// Dot multiplies two sparse vectors by merging their index lists.
func Dot(a, b Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm is the Euclidean length of v.
func Norm(v Vector) float64 {
	var sq float64
	for _, x := range v.Values {
		sq += x * x
	}
	return math.Sqrt(sq)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is the
// zero vector.
func Cosine(a, b Vector) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// normalize scales v to unit length in place. The zero vector is left as is.
func normalize(v Vector) {
	n := Norm(v)
	if n == 0 {
		return
	}
	for i := range v.Values {
		v.Values[i] /= n
	}
}

func (v Vector) valid(dim int) bool {
	if len(v.Indices) != len(v.Values) {
		return false
	}
	prev := -1
	for _, idx := range v.Indices {
		if idx <= prev || idx >= dim {
			return false
		}
		prev = idx
	}
	return true
}
