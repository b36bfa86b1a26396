package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"backend/internal/catalog"
	"backend/internal/common"
	"backend/internal/logger"
	"backend/internal/metrics"

	"go.uber.org/zap"
)

// ProductGetter 语义搜索回查商品的最小接口
type ProductGetter interface {
	GetBatch(ctx context.Context, ids []int64) ([]*catalog.Product, error)
}

// SemanticSearcher 语义搜索适配器
// 两次外部调用顺序执行：先向量化查询文本，再查相似度索引，最后批量回查商品
// 任一步失败则整体失败，不自动回落到关键词搜索
type SemanticSearcher struct {
	embedder EmbeddingProvider
	index    VectorIndex
	products ProductGetter
	topK     int
}

// NewSemanticSearcher 创建语义搜索适配器
func NewSemanticSearcher(embedder EmbeddingProvider, index VectorIndex, products ProductGetter, topK int) *SemanticSearcher {
	if topK <= 0 {
		topK = 5
	}
	return &SemanticSearcher{
		embedder: embedder,
		index:    index,
		products: products,
		topK:     topK,
	}
}

// Search 按语义相似度检索商品
// 结果保持相似度排名：得分降序，同分按 ID 升序
func (s *SemanticSearcher) Search(ctx context.Context, query string) ([]*catalog.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, common.NewValidationError("O parâmetro 'query' é obrigatório.")
	}

	start := time.Now()

	// 第一步：向量化查询文本
	embedStart := time.Now()
	vector, err := s.embedder.Embed(ctx, query)
	metrics.ExternalCallDuration.WithLabelValues("embedding").Observe(time.Since(embedStart).Seconds())
	if err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("embedding", "failed").Inc()
		metrics.SearchesTotal.WithLabelValues("semantic", "failed").Inc()
		logger.WithContext(ctx).Error("查询向量化失败", zap.String("query", query), zap.Error(err))
		return nil, common.NewExternalServiceError("Erro ao buscar produtos com IA.", err)
	}
	metrics.ExternalCallsTotal.WithLabelValues("embedding", "success").Inc()

	// 第二步：查相似度索引，只要 ID 和得分
	queryStart := time.Now()
	neighbors, err := s.index.Query(ctx, vector, s.topK)
	metrics.ExternalCallDuration.WithLabelValues("vector_index").Observe(time.Since(queryStart).Seconds())
	if err != nil {
		metrics.ExternalCallsTotal.WithLabelValues("vector_index", "failed").Inc()
		metrics.SearchesTotal.WithLabelValues("semantic", "failed").Inc()
		logger.WithContext(ctx).Error("相似度检索失败", zap.String("query", query), zap.Error(err))
		return nil, common.NewExternalServiceError("Erro ao buscar produtos com IA.", err)
	}
	metrics.ExternalCallsTotal.WithLabelValues("vector_index", "success").Inc()

	// 第三步：解析邻居 ID，非数字 ID 跳过
	ranked := make([]rankedID, 0, len(neighbors))
	for _, n := range neighbors {
		id, parseErr := strconv.ParseInt(n.ID, 10, 64)
		if parseErr != nil {
			logger.WithContext(ctx).Warn("索引返回非法商品ID", zap.String("id", n.ID))
			continue
		}
		ranked = append(ranked, rankedID{id: id, score: n.Score})
	}

	// 零邻居是空结果，不是错误
	if len(ranked) == 0 {
		metrics.SearchesTotal.WithLabelValues("semantic", "success").Inc()
		metrics.SearchResults.WithLabelValues("semantic").Observe(0)
		return []*catalog.Product{}, nil
	}

	// 得分降序，同分按 ID 升序
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	// 第四步：批量回查并按排名重排，索引里有但库里已删的 ID 静默丢弃
	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}

	rows, err := s.products.GetBatch(ctx, ids)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("semantic", "failed").Inc()
		return nil, err
	}

	byID := make(map[int64]*catalog.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}

	results := make([]*catalog.Product, 0, len(ranked))
	for _, r := range ranked {
		if p, ok := byID[r.id]; ok {
			results = append(results, p)
		}
	}

	metrics.SearchesTotal.WithLabelValues("semantic", "success").Inc()
	metrics.SearchDuration.WithLabelValues("semantic").Observe(time.Since(start).Seconds())
	metrics.SearchResults.WithLabelValues("semantic").Observe(float64(len(results)))

	return results, nil
}

type rankedID struct {
	id    int64
	score float64
}
