package search

import (
	"context"
	"errors"
	"testing"

	"backend/internal/catalog"
	"backend/internal/common"
	"backend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 固定向量的向量化提供者
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (f *fakeEmbedder) GetModel() string        { return "fake-model" }
func (f *fakeEmbedder) GetProviderName() string { return "fake" }

// fakeIndex 返回预设邻居的向量索引
type fakeIndex struct {
	neighbors []Neighbor
	err       error
	lastTopK  int
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error) {
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, vectors []*ProductVector) error { return nil }
func (f *fakeIndex) Delete(ctx context.Context, ids []string) error             { return nil }
func (f *fakeIndex) Ensure(ctx context.Context) error                           { return nil }

// fakeGetter 按内存表回查商品
type fakeGetter struct {
	products map[int64]*catalog.Product
}

func (f *fakeGetter) GetBatch(ctx context.Context, ids []int64) ([]*catalog.Product, error) {
	var result []*catalog.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func semanticTestProducts() *fakeGetter {
	return &fakeGetter{products: map[int64]*catalog.Product{
		1: {ID: 1, Name: "Caneca Azul"},
		2: {ID: 2, Name: "Caneca Térmica"},
		3: {ID: 3, Name: "Almofada Estrela"},
	}}
}

func initTestLogger(t *testing.T) {
	t.Helper()
	require.NoError(t, logger.Init("error", "console", "stdout"))
}

func TestSemanticSearch_RankOrder(t *testing.T) {
	initTestLogger(t)
	ctx := context.Background()

	index := &fakeIndex{neighbors: []Neighbor{
		{ID: "3", Score: 0.55},
		{ID: "1", Score: 0.91},
		{ID: "2", Score: 0.78},
	}}
	searcher := NewSemanticSearcher(&fakeEmbedder{}, index, semanticTestProducts(), 5)

	results, err := searcher.Search(ctx, "presente para quem gosta de café")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// 得分降序，与数据库返回顺序无关
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, int64(3), results[2].ID)
	assert.Equal(t, 5, index.lastTopK)
}

func TestSemanticSearch_TieBreakByID(t *testing.T) {
	initTestLogger(t)
	ctx := context.Background()

	index := &fakeIndex{neighbors: []Neighbor{
		{ID: "2", Score: 0.8},
		{ID: "1", Score: 0.8},
	}}
	searcher := NewSemanticSearcher(&fakeEmbedder{}, index, semanticTestProducts(), 5)

	results, err := searcher.Search(ctx, "caneca")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
}

func TestSemanticSearch_EmptyQuery(t *testing.T) {
	initTestLogger(t)
	searcher := NewSemanticSearcher(&fakeEmbedder{}, &fakeIndex{}, semanticTestProducts(), 5)

	_, err := searcher.Search(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
	assert.Equal(t, "O parâmetro 'query' é obrigatório.", err.Error())
}

func TestSemanticSearch_ZeroNeighbors(t *testing.T) {
	initTestLogger(t)
	searcher := NewSemanticSearcher(&fakeEmbedder{}, &fakeIndex{}, semanticTestProducts(), 5)

	results, err := searcher.Search(context.Background(), "algo muito raro")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSemanticSearch_SkipsBadIDsAndMissingProducts(t *testing.T) {
	initTestLogger(t)
	ctx := context.Background()

	index := &fakeIndex{neighbors: []Neighbor{
		{ID: "abc", Score: 0.99}, // 非数字 ID，跳过
		{ID: "1", Score: 0.9},
		{ID: "42", Score: 0.8}, // 索引里有但库里已删
	}}
	searcher := NewSemanticSearcher(&fakeEmbedder{}, index, semanticTestProducts(), 5)

	results, err := searcher.Search(ctx, "caneca")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestSemanticSearch_ExternalFailures(t *testing.T) {
	initTestLogger(t)
	ctx := context.Background()

	t.Run("向量化失败", func(t *testing.T) {
		embedder := &fakeEmbedder{err: errors.New("serviço de embedding fora do ar")}
		searcher := NewSemanticSearcher(embedder, &fakeIndex{}, semanticTestProducts(), 5)

		_, err := searcher.Search(ctx, "caneca")
		require.Error(t, err)
		assert.Equal(t, common.KindExternal, common.KindOf(err))
		assert.Contains(t, err.Error(), "Erro ao buscar produtos com IA.")
		// 底层错误信息要能透出，便于排查
		assert.Contains(t, err.Error(), "embedding fora do ar")
	})

	t.Run("索引查询失败", func(t *testing.T) {
		index := &fakeIndex{err: errors.New("índice indisponível")}
		searcher := NewSemanticSearcher(&fakeEmbedder{}, index, semanticTestProducts(), 5)

		_, err := searcher.Search(ctx, "caneca")
		require.Error(t, err)
		assert.Equal(t, common.KindExternal, common.KindOf(err))
	})
}
