package search

import (
	"context"
	"errors"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/testhelpers"
)

type seeded struct {
	db     *gorm.DB
	chunks map[string]string // text -> id
}

func seed(t *testing.T, fake *testhelpers.FakeLLM) seeded {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	ctx := context.Background()

	valid := &models.Material{ProjectID: "p1", Filename: "bio.pdf", Category: models.CategoryLectureNotes, ObjectKey: "k1", ValidationStatus: models.ValidationValid}
	invalid := &models.Material{ProjectID: "p1", Filename: "junk.pdf", Category: models.CategoryOther, ObjectKey: "k2", ValidationStatus: models.ValidationInvalid}
	other := &models.Material{ProjectID: "p2", Filename: "other.pdf", Category: models.CategoryOther, ObjectKey: "k3", ValidationStatus: models.ValidationValid}
	require.NoError(t, db.Create(valid).Error)
	require.NoError(t, db.Create(invalid).Error)
	require.NoError(t, db.Create(other).Error)

	s := seeded{db: db, chunks: map[string]string{}}
	add := func(materialID string, idx int, text string) {
		vecs, err := fake.Embed(ctx, []string{text})
		require.NoError(t, err)
		v := pgvector.NewVector(vecs[0])
		c := &models.MaterialChunk{MaterialID: materialID, ChunkIndex: idx, ChunkText: text, Embedding: &v}
		require.NoError(t, db.Create(c).Error)
		s.chunks[text] = c.ID
	}
	add(valid.ID, 0, "Photosynthesis converts light energy")
	add(valid.ID, 1, "Mitochondria produce ATP")
	add(valid.ID, 2, "Light reactions occur in thylakoids")
	add(invalid.ID, 0, "Photosynthesis in an invalid document")
	add(other.ID, 0, "Photosynthesis in another project")
	return s
}

func TestHybridSearchCombinesSources(t *testing.T) {
	fake := &testhelpers.FakeLLM{Dims: 1024}
	s := seed(t, fake)
	searcher := NewSearcher(s.db, fake, zap.NewNop())

	results, err := searcher.Hybrid(context.Background(), "p1", Query{
		Name:        "Photosynthesis",
		Description: "light energy conversion",
		Keywords:    []string{"photosynthesis"},
	}, 15)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, s.chunks["Photosynthesis converts light energy"], top.ChunkID)
	assert.Equal(t, models.SourceKeywordAndSemantic, top.Source)
	assert.GreaterOrEqual(t, top.Score, 0.8*1.1)
	assert.Equal(t, "bio.pdf", top.Filename)

	for _, r := range results {
		assert.NotEqual(t, s.chunks["Photosynthesis in an invalid document"], r.ChunkID, "invalid materials are excluded")
		assert.NotEqual(t, s.chunks["Photosynthesis in another project"], r.ChunkID, "other projects are excluded")
		if r.ChunkID != top.ChunkID {
			assert.Equal(t, models.SourceSemantic, r.Source)
		}
	}
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	limited, err := searcher.Hybrid(context.Background(), "p1", Query{Name: "Photosynthesis", Keywords: []string{"photosynthesis"}}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHybridSearchKeywordOnly(t *testing.T) {
	s := seed(t, &testhelpers.FakeLLM{})
	searcher := NewSearcher(s.db, nil, zap.NewNop())

	results, err := searcher.Hybrid(context.Background(), "p1", Query{Name: "Energy", Keywords: []string{"LIGHT"}}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.SourceKeyword, r.Source)
		assert.Equal(t, 0.8, r.Score)
	}
	assert.Equal(t, 0, results[0].ChunkIndex)

	// falls back to the topic name when there are no keywords
	results, err = searcher.Hybrid(context.Background(), "p1", Query{Name: "mitochondria"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// wildcards in keywords are literal
	results, err = searcher.Hybrid(context.Background(), "p1", Query{Keywords: []string{"%"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridSearchSurvivesEmbeddingFailure(t *testing.T) {
	fake := &testhelpers.FakeLLM{}
	s := seed(t, fake)
	fake.EmbedErr = errors.New("quota")

	results, err := NewSearcher(s.db, fake, zap.NewNop()).Hybrid(context.Background(), "p1", Query{Keywords: []string{"atp"}}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.SourceKeyword, results[0].Source)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

type countingEmbedder struct {
	testhelpers.FakeLLM
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.FakeLLM.Embed(ctx, texts)
}

var _ llm.Provider = (*countingEmbedder)(nil)

func TestEmbedAllBatches(t *testing.T) {
	p := &countingEmbedder{}
	vecs, err := EmbedAll(context.Background(), p, []string{"a", "b", "c", "d", "e"}, 2)
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, 3, p.calls)

	vecs, err = EmbedAll(context.Background(), p, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
