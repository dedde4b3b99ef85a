// Package search finds the material chunks relevant to a topic.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
)

const (
	DefaultLimit = 15
	keywordScore = 0.8
	dualBoost    = 1.1
)

type Query struct {
	Name        string
	Description string
	Keywords    []string
}

type Result struct {
	ChunkID          string  `json:"chunk_id"`
	MaterialID       string  `json:"material_id"`
	Filename         string  `json:"filename"`
	ChunkText        string  `json:"chunk_text"`
	SectionHierarchy string  `json:"section_hierarchy"`
	PageStart        *int    `json:"page_start,omitempty"`
	PageEnd          *int    `json:"page_end,omitempty"`
	ChunkIndex       int     `json:"chunk_index"`
	Score            float64 `json:"relevance_score"`
	Source           string  `json:"relevance_source"`
}

type chunkRow struct {
	ID               string
	MaterialID       string
	Filename         string
	ChunkText        string
	SectionHierarchy string
	PageStart        *int
	PageEnd          *int
	ChunkIndex       int
	Similarity       float64
	Embedding        *pgvector.Vector
}

func (r chunkRow) result(score float64, source string) Result {
	return Result{
		ChunkID:          r.ID,
		MaterialID:       r.MaterialID,
		Filename:         r.Filename,
		ChunkText:        r.ChunkText,
		SectionHierarchy: r.SectionHierarchy,
		PageStart:        r.PageStart,
		PageEnd:          r.PageEnd,
		ChunkIndex:       r.ChunkIndex,
		Score:            score,
		Source:           source,
	}
}

// Searcher combines keyword matching with embedding similarity. Without a provider
// only keyword matching runs.
type Searcher struct {
	db       *gorm.DB
	provider llm.Provider
	logger   *zap.Logger
}

func NewSearcher(db *gorm.DB, provider llm.Provider, logger *zap.Logger) *Searcher {
	return &Searcher{db: db, provider: provider, logger: logger}
}

func (s *Searcher) projectChunks(ctx context.Context, projectID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("material_chunks AS mc").
		Joins("JOIN materials m ON mc.material_id = m.id").
		Where("m.project_id = ? AND m.validation_status = ?", projectID, models.ValidationValid)
}

const chunkColumns = "mc.id, mc.material_id, m.filename, mc.chunk_text, mc.section_hierarchy, mc.page_start, mc.page_end, mc.chunk_index"

// Hybrid ranks chunks of valid materials in the project for q.
func (s *Searcher) Hybrid(ctx context.Context, projectID string, q Query, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	keywordRows, err := s.keywordSearch(ctx, projectID, q, limit*2)
	if err != nil {
		return nil, err
	}

	var semanticRows []chunkRow
	if s.provider != nil {
		semanticRows, err = s.semanticSearch(ctx, projectID, q.Name+": "+q.Description, limit*2)
		if err != nil {
			// keyword hits are still useful
			s.logger.Warn("Semantic search failed", zap.String("topic", q.Name), zap.Error(err))
			semanticRows = nil
		}
	}

	byID := make(map[string]*Result, len(keywordRows)+len(semanticRows))
	for _, row := range keywordRows {
		r := row.result(keywordScore, models.SourceKeyword)
		byID[row.ID] = &r
	}
	for _, row := range semanticRows {
		if existing, ok := byID[row.ID]; ok {
			existing.Score = math.Max(existing.Score, row.Similarity) * dualBoost
			existing.Source = models.SourceKeywordAndSemantic
			continue
		}
		r := row.result(row.Similarity, models.SourceSemantic)
		byID[row.ID] = &r
	}

	ranked := make([]Result, 0, len(byID))
	for _, r := range byID {
		ranked = append(ranked, *r)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].ChunkIndex != ranked[j].ChunkIndex {
			return ranked[i].ChunkIndex < ranked[j].ChunkIndex
		}
		return ranked[i].ChunkID < ranked[j].ChunkID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	s.logger.Debug("Hybrid search",
		zap.String("topic", q.Name),
		zap.Int("keyword_hits", len(keywordRows)),
		zap.Int("semantic_hits", len(semanticRows)),
		zap.Int("returned", len(ranked)))
	return ranked, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Searcher) keywordSearch(ctx context.Context, projectID string, q Query, limit int) ([]chunkRow, error) {
	terms := make([]string, 0, len(q.Keywords))
	for _, kw := range q.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, kw)
		}
	}
	if len(terms) == 0 && strings.TrimSpace(q.Name) != "" {
		terms = append(terms, strings.TrimSpace(q.Name))
	}
	if len(terms) == 0 {
		return nil, nil
	}

	conds := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, term := range terms {
		conds[i] = `LOWER(mc.chunk_text) LIKE ? ESCAPE '\'`
		args[i] = "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	}

	var rows []chunkRow
	err := s.projectChunks(ctx, projectID).
		Select(chunkColumns).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Order("mc.chunk_index ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return rows, nil
}

func (s *Searcher) semanticSearch(ctx context.Context, projectID, text string, limit int) ([]chunkRow, error) {
	vectors, err := s.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	query := vectors[0]

	if s.db.Dialector.Name() == "postgres" {
		vec := pgvector.NewVector(query)
		var rows []chunkRow
		err := s.projectChunks(ctx, projectID).
			Select(chunkColumns+", 1 - (mc.embedding <=> ?) AS similarity", vec).
			Where("mc.embedding IS NOT NULL").
			Order(gorm.Expr("mc.embedding <=> ?", vec)).
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		return rows, nil
	}

	return s.scanSimilar(ctx, projectID, query, limit)
}

// scanSimilar ranks embeddings in process for databases without pgvector.
func (s *Searcher) scanSimilar(ctx context.Context, projectID string, query []float32, limit int) ([]chunkRow, error) {
	var rows []chunkRow
	err := s.projectChunks(ctx, projectID).
		Select(chunkColumns + ", mc.embedding").
		Where("mc.embedding IS NOT NULL").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	for i := range rows {
		if rows[i].Embedding != nil {
			rows[i].Similarity = CosineSimilarity(query, rows[i].Embedding.Slice())
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Similarity > rows[j].Similarity })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// CosineSimilarity returns 0 for mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
