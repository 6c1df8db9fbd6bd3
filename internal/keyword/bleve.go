package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/sofim-uhk/sofim/internal/models"
)

const batchSize = 500

// BleveIndex implements Index with a memory-only Bleve index.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so course codes match exactly.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("passage", docMapping)
	im.DefaultType = "passage"
	im.DefaultMapping = docMapping
	return im
}

// Build creates a fresh in-memory index containing passages.
func Build(passages []*models.Passage) (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := index.NewBatch()
	for _, p := range passages {
		if err := batch.Index(strconv.FormatInt(p.ID, 10), newPassageDoc(p)); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index passage %d: %w", p.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index batch: %w", err)
		}
	}
	return &BleveIndex{index: index}, nil
}

// Search runs a match query and returns up to limit results.
// When opts.TitleBoost > 1, title and content are queried separately and
// merged additively with a term coverage penalty for partial matches.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if limit <= 0 {
		limit = 10
	}
	titleBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 2
	source := ""
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		source = opts.SourceTag
	}

	if titleBoost <= 1.0 {
		q := b.restrict(b.buildQuery(query, fuzzyEnabled, fuzziness, ""), source)
		return b.run(ctx, q, limit)
	}
	return b.searchWithBoost(ctx, query, limit, titleBoost, fuzzyEnabled, fuzziness, source)
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, limit int) ([]*Result, error) {
	hits, err := b.hits(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, &Result{PassageID: h.id, Score: h.score})
	}
	return out, nil
}

type hit struct {
	id    int64
	score float64
}

func (b *BleveIndex) hits(ctx context.Context, q blevequery.Query, size int) ([]hit, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, hit{id: id, score: h.Score})
	}
	return out, nil
}

func (b *BleveIndex) searchWithBoost(ctx context.Context, query string, limit int, titleBoost float64, fuzzyEnabled bool, fuzziness int, source string) ([]*Result, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	terms := tokenizeQuery(query)

	titleHits, err := b.hits(ctx, b.restrict(b.buildQuery(query, fuzzyEnabled, fuzziness, "title"), source), reqSize)
	if err != nil {
		return nil, err
	}
	contentHits, err := b.hits(ctx, b.restrict(b.buildQuery(query, fuzzyEnabled, fuzziness, "content"), source), reqSize)
	if err != nil {
		return nil, err
	}

	scores := make(map[int64]float64)
	for _, h := range titleHits {
		scores[h.id] += h.score * titleBoost
	}
	for _, h := range contentHits {
		scores[h.id] += h.score
	}

	// Squared coverage penalty: a passage matching 1 of 2 terms keeps a quarter of its score.
	if len(terms) > 1 {
		coverage := make(map[int64]int)
		for _, term := range terms {
			termHits, err := b.hits(ctx, b.restrict(b.buildQuery(term, fuzzyEnabled, fuzziness, ""), source), reqSize)
			if err != nil {
				continue
			}
			for _, h := range termHits {
				coverage[h.id]++
			}
		}
		for id := range scores {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			scores[id] *= c * c
		}
	}

	merged := make([]*Result, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, &Result{PassageID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score == merged[j].Score {
			return merged[i].PassageID < merged[j].PassageID
		}
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildQuery creates a match query, or a disjunction of fuzzy queries per term.
// An empty field searches all fields.
func (b *BleveIndex) buildQuery(queryStr string, fuzzyEnabled bool, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if !fuzzyEnabled || len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func (b *BleveIndex) restrict(q blevequery.Query, source string) blevequery.Query {
	if source == "" {
		return q
	}
	tq := bleve.NewTermQuery(source)
	tq.SetField("source")
	return bleve.NewConjunctionQuery(q, tq)
}

// DocCount returns the total number of passages in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
