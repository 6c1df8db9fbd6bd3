package ranking

import (
	"fmt"
	"testing"

	"github.com/sofim-uhk/sofim/internal/models"
)

func benchPassages(n, dims int) []*models.Passage {
	passages := make([]*models.Passage, n)
	for i := range passages {
		vec := make([]float32, dims)
		vec[0] = float32(i) / float32(n)
		vec[i%dims] += 0.5
		passages[i] = &models.Passage{
			ID:     int64(i + 1),
			Title:  fmt.Sprintf("Předmět: Kurz %d (K%03d)", i, i),
			Vector: vec,
		}
	}
	return passages
}

func BenchmarkRanker_Rank(b *testing.B) {
	r := NewRanker(DefaultConfig())
	passages := benchPassages(5000, 384)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Rank(query, passages, "kdo garantuje K042")
	}
}

func BenchmarkAnalyzer_CodeTokens(b *testing.B) {
	a := NewAnalyzer(nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = a.CodeTokens("Jaké jsou požadavky ke zkoušce z předmětu KIKM a MAT1?")
	}
}
