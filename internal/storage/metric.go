package storage

import (
	"math"
	"sort"
)

// Score computes the similarity of a and b under m. Vectors must share a length.
//
// Euclidean distance is mapped to 1/(1+d²) so that every metric ranks descending.
func Score(m Metric, a, b []float32) float64 {
	switch m {
	case MetricDotProduct:
		return dot(a, b)
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + sum)
	default:
		return cosine(a, b)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// cosine returns 0 when either vector has zero magnitude.
func cosine(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank sorts hits by descending score, ties by ID, and keeps the top k.
func rank(hits []ScoredDocument, k int) []ScoredDocument {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// euclideanScore converts a raw L2 distance into the descending score used by Score.
func euclideanScore(distance float64) float64 {
	return 1 / (1 + distance*distance)
}
