package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"ragchat/internal/domain"
)

// Retriever ranks knowledge-base chunks against a query with simple
// case-insensitive term matching. Chunks are streamed from storage and
// scored in memory.
type Retriever struct {
	docs domain.DocumentRepository
	log  *zap.Logger
}

func NewRetriever(docs domain.DocumentRepository, log *zap.Logger) *Retriever {
	return &Retriever{docs: docs, log: log}
}

type scored struct {
	passage domain.Passage
	score   int
}

func (r *Retriever) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 1
	}

	var hits []scored
	err := r.docs.Scan(ctx, func(doc *domain.Document) error {
		score := scoreChunk(doc.Content, terms)
		if score == 0 {
			return nil
		}
		hits = append(hits, scored{
			passage: domain.Passage{
				Content: doc.Content,
				Locator: doc.Source,
				ChunkNo: doc.ChunkNo,
			},
			score: score,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	passages := make([]domain.Passage, len(hits))
	for i, h := range hits {
		passages[i] = h.passage
	}
	r.log.Debug("retrieval done",
		zap.Int("terms", len(terms)),
		zap.Int("hits", len(passages)))
	return passages, nil
}

// scoreChunk counts term occurrences, weighting every matched distinct term
// so chunks covering more of the query outrank chunks repeating one word.
func scoreChunk(content string, terms []string) int {
	lower := strings.ToLower(content)
	score := 0
	matched := 0
	for _, term := range terms {
		n := strings.Count(lower, term)
		if n > 0 {
			matched++
			score += n
		}
	}
	if matched == 0 {
		return 0
	}
	return score + matched*10
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var terms []string
	for _, f := range fields {
		if len(f) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}
