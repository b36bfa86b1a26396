package search

import (
	"context"
	"fmt"

	"backend/internal/catalog"
)

// EmbeddingProvider 抽象不同向量模型/服务的统一接口。
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	GetModel() string
	GetProviderName() string
}

// IndexText 构造商品的向量化文本
// 名称出现两次以加重权重，与索引中已有向量的构造方式保持一致
func IndexText(p *catalog.Product) string {
	return fmt.Sprintf(
		"Nome do produto: %s. Categoria: %s. Descrição: %s. Sobre o produto: %s.",
		p.Name, p.Category, p.Description, p.Name,
	)
}
