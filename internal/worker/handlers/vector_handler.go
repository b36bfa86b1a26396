package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"backend/internal/catalog"
	"backend/internal/common"
	"backend/internal/metrics"
	"backend/internal/search"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// VectorHandler 向量镜像任务处理器
// 把商品写入产生的索引同步从请求路径剥离到后台队列
type VectorHandler struct {
	products *catalog.ProductService
	embedder search.EmbeddingProvider
	index    search.VectorIndex
	logger   *zap.Logger
}

// NewVectorHandler 创建向量镜像处理器
func NewVectorHandler(products *catalog.ProductService, embedder search.EmbeddingProvider, index search.VectorIndex, logger *zap.Logger) *VectorHandler {
	return &VectorHandler{
		products: products,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// HandleUpsertProductVector 重新向量化商品并写入索引
func (h *VectorHandler) HandleUpsertProductVector(ctx context.Context, t *asynq.Task) error {
	var p tasks.UpsertProductVectorPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("开始处理向量上送任务", zap.Int64("product_id", p.ProductID))

	product, err := h.products.Get(ctx, p.ProductID)
	if err != nil {
		// 商品已被删除，任务作废不重试
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Kind == common.KindNotFound {
			h.logger.Warn("商品已不存在，跳过向量上送", zap.Int64("product_id", p.ProductID))
			return nil
		}
		return err
	}

	vector, err := h.embedder.Embed(ctx, search.IndexText(product))
	if err != nil {
		metrics.VectorMirrorTasksTotal.WithLabelValues("upsert", "failed").Inc()
		h.logger.Error("商品向量化失败", zap.Int64("product_id", p.ProductID), zap.Error(err))
		return err
	}

	err = h.index.Upsert(ctx, []*search.ProductVector{{
		ID:     strconv.FormatInt(product.ID, 10),
		Values: vector,
		Metadata: map[string]any{
			"name":     product.Name,
			"category": product.Category,
		},
	}})
	if err != nil {
		metrics.VectorMirrorTasksTotal.WithLabelValues("upsert", "failed").Inc()
		h.logger.Error("商品向量上送失败", zap.Int64("product_id", p.ProductID), zap.Error(err))
		return err
	}

	metrics.VectorMirrorTasksTotal.WithLabelValues("upsert", "success").Inc()
	h.logger.Info("向量上送完成", zap.Int64("product_id", p.ProductID))
	return nil
}

// HandleDeleteProductVector 从索引中删除商品向量
func (h *VectorHandler) HandleDeleteProductVector(ctx context.Context, t *asynq.Task) error {
	var p tasks.DeleteProductVectorPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("开始处理向量删除任务", zap.Int64("product_id", p.ProductID))

	if err := h.index.Delete(ctx, []string{strconv.FormatInt(p.ProductID, 10)}); err != nil {
		metrics.VectorMirrorTasksTotal.WithLabelValues("delete", "failed").Inc()
		h.logger.Error("商品向量删除失败", zap.Int64("product_id", p.ProductID), zap.Error(err))
		return err
	}

	metrics.VectorMirrorTasksTotal.WithLabelValues("delete", "success").Inc()
	h.logger.Info("向量删除完成", zap.Int64("product_id", p.ProductID))
	return nil
}
