package retriever

import (
	"math"

	"banking-rag/internal/models"
)

// selectMMR greedily picks up to topK candidates, at each step taking the
// unselected candidate maximizing
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, s) for s in selected)
//
// Candidates arrive ordered by descending query similarity, so lambda=1
// reproduces that ordering exactly; lambda=0 maximizes diversity among the
// selections. Ties keep the earlier (more similar) candidate.
func selectMMR(candidates []models.RetrievalCandidate, topK int, lambda float64) []models.RetrievalCandidate {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}

	selected := make([]models.RetrievalCandidate, 0, topK)
	remaining := make([]models.RetrievalCandidate, len(candidates))
	copy(remaining, candidates)

	for len(selected) < topK {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			score := lambda * float64(cand.Similarity)
			if len(selected) > 0 {
				maxSim := math.Inf(-1)
				for _, sel := range selected {
					if sim := float64(cosineSimilarity(cand.Chunk.Embedding, sel.Chunk.Embedding)); sim > maxSim {
						maxSim = sim
					}
				}
				score -= (1 - lambda) * maxSim
			}
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
