package search

import "context"

// Neighbor 相似度检索的邻居项，只携带标识和得分
type Neighbor struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ProductVector 待上送的商品向量
type ProductVector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// VectorIndex 外部向量索引统一接口
type VectorIndex interface {
	// Query 查询 topK 个余弦最近邻，不返回向量本身
	Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error)
	// Upsert 写入或替换一批商品向量
	Upsert(ctx context.Context, vectors []*ProductVector) error
	// Delete 按 ID 删除向量
	Delete(ctx context.Context, ids []string) error
	// Ensure 校验索引可用且维度匹配
	Ensure(ctx context.Context) error
}
