package ranking

import (
	"sort"
	"strings"

	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/pkg/utils"
)

// Ranker scores passages by cosine similarity plus a boost for each query
// code that appears as a whole word in the passage title.
type Ranker struct {
	config   *Config
	analyzer *Analyzer
}

// NewRanker creates a new Ranker with the given configuration.
func NewRanker(config *Config) *Ranker {
	if config == nil {
		config = DefaultConfig()
	}
	config.ApplyDefaults()
	return &Ranker{config: config, analyzer: NewAnalyzer(config.Stopwords)}
}

// Analyzer returns the ranker's code-token analyzer.
func (r *Ranker) Analyzer() *Analyzer {
	return r.analyzer
}

// Boost returns the code boost for a title given the query's code tokens.
// Every matching token adds the configured boost, repeated tokens included.
func (r *Ranker) Boost(codes []string, title string) float64 {
	if len(codes) == 0 {
		return 0
	}
	words := TitleWords(title)
	var boost float64
	for _, c := range codes {
		if words[strings.ToLower(c)] {
			boost += r.config.CodeBoost
		}
	}
	return boost
}

// Rank scores every passage, sorts descending (ties keep snapshot order) and
// returns at most TopK passages scoring strictly above MinScore. Codes are
// taken from originalQuery, never from a rewritten query.
func (r *Ranker) Rank(queryVec []float32, passages []*models.Passage, originalQuery string) []models.ScoredPassage {
	if len(passages) == 0 {
		return nil
	}
	codes := r.analyzer.CodeTokens(originalQuery)
	scored := make([]models.ScoredPassage, len(passages))
	for i, p := range passages {
		cos := utils.Cosine(queryVec, p.Vector)
		boost := r.Boost(codes, p.Title)
		scored[i] = models.ScoredPassage{Passage: p, Score: cos + boost, Cosine: cos, Boost: boost}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > r.config.TopK {
		scored = scored[:r.config.TopK]
	}
	out := scored[:0]
	for _, s := range scored {
		if s.Score > r.config.MinScore {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
