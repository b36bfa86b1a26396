package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductEmbedding 商品向量记录（pgvector 后端）
type ProductEmbedding struct {
	ProductID int64           `gorm:"primaryKey"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
}

// TableName 指定表名
func (ProductEmbedding) TableName() string {
	return "product_embeddings"
}

// PGVectorIndex 基于 PostgreSQL pgvector 扩展的向量索引实现
// 与 Pinecone 后端共用 VectorIndex 接口，由配置选择
type PGVectorIndex struct {
	db         *gorm.DB
	vectorSize int
}

// NewPGVectorIndex 创建 pgvector 索引实例
func NewPGVectorIndex(db *gorm.DB, vectorSize int) (*PGVectorIndex, error) {
	if vectorSize <= 0 {
		vectorSize = 768
	}

	idx := &PGVectorIndex{db: db, vectorSize: vectorSize}

	if err := idx.Ensure(context.Background()); err != nil {
		return nil, err
	}

	return idx, nil
}

// Ensure 启用 pgvector 扩展并迁移向量表
func (s *PGVectorIndex) Ensure(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("启用pgvector扩展失败: %w", err)
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&ProductEmbedding{}); err != nil {
		return fmt.Errorf("迁移向量表失败: %w", err)
	}
	return nil
}

// Query 余弦相似度检索
// <=> 是 pgvector 的余弦距离操作符，1 - 距离即相似度
func (s *PGVectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}
	if len(vector) != s.vectorSize {
		return nil, fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", s.vectorSize, len(vector))
	}
	if topK <= 0 {
		topK = 5
	}

	query := `
		SELECT
			product_id,
			1 - (embedding <=> ?) AS similarity
		FROM product_embeddings
		ORDER BY embedding <=> ?
		LIMIT ?
	`

	var rows []struct {
		ProductID  int64   `gorm:"column:product_id"`
		Similarity float64 `gorm:"column:similarity"`
	}

	qv := pgvector.NewVector(vector)
	if err := s.db.WithContext(ctx).Raw(query, qv, qv, topK).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("向量搜索失败: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(rows))
	for _, row := range rows {
		neighbors = append(neighbors, Neighbor{
			ID:    strconv.FormatInt(row.ProductID, 10),
			Score: row.Similarity,
		})
	}
	return neighbors, nil
}

// Upsert 写入或替换一批商品向量
func (s *PGVectorIndex) Upsert(ctx context.Context, vectors []*ProductVector) error {
	if len(vectors) == 0 {
		return nil
	}

	records := make([]ProductEmbedding, 0, len(vectors))
	for _, vec := range vectors {
		if vec == nil {
			continue
		}
		if len(vec.Values) != s.vectorSize {
			return fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", s.vectorSize, len(vec.Values))
		}
		productID, err := strconv.ParseInt(vec.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("非法的商品ID: %q", vec.ID)
		}
		records = append(records, ProductEmbedding{
			ProductID: productID,
			Embedding: pgvector.NewVector(vec.Values),
		})
	}

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding"}),
		}).
		Create(&records).Error; err != nil {
		return fmt.Errorf("写入商品向量失败: %w", err)
	}
	return nil
}

// Delete 按 ID 删除向量
func (s *PGVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	productIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		productID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		productIDs = append(productIDs, productID)
	}

	if err := s.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Delete(&ProductEmbedding{}).Error; err != nil {
		return fmt.Errorf("删除商品向量失败: %w", err)
	}
	return nil
}
