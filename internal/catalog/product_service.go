package catalog

import (
	"context"
	"errors"
	"strings"

	"backend/internal/common"
	"backend/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KeywordMirror 关键词索引镜像
// 商品的每次写入都必须在同一事务内同步到关键词索引，否则搜索结果会悄悄偏离存储内容
type KeywordMirror interface {
	Mirror(tx *gorm.DB, p *Product) error
	Remove(tx *gorm.DB, productID int64) error
}

// VectorMirrorQueue 向量索引镜像队列
// 外部向量索引的同步走事务提交后的异步任务，入队失败只记日志，不影响请求结果
type VectorMirrorQueue interface {
	EnqueueUpsertProductVector(productID int64) error
	EnqueueDeleteProductVector(productID int64) error
}

// ProductService 商品服务
type ProductService struct {
	db     *gorm.DB
	mirror KeywordMirror
	queue  VectorMirrorQueue // 可为 nil（Redis 不可用时降级）
}

// NewProductService 创建商品服务
func NewProductService(db *gorm.DB, mirror KeywordMirror, queue VectorMirrorQueue) *ProductService {
	return &ProductService{db: db, mirror: mirror, queue: queue}
}

// List 查询商品列表，按名称排序
func (s *ProductService) List(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	query := s.db.WithContext(ctx).Model(&Product{})

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.OnSale != nil {
		query = query.Where("on_sale = ?", *filter.OnSale)
	}

	var products []*Product
	if err := query.Order("name").Find(&products).Error; err != nil {
		return nil, common.NewStoreError("falha ao consultar produtos", err)
	}
	return products, nil
}

// Get 获取商品详情
func (s *ProductService) Get(ctx context.Context, id int64) (*Product, error) {
	var product Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewNotFoundError("Produto não encontrado.")
		}
		return nil, common.NewStoreError("falha ao consultar produto", err)
	}
	return &product, nil
}

// GetBatch 按 ID 批量获取商品，顺序不保证，调用方自行重排
func (s *ProductService) GetBatch(ctx context.Context, ids []int64) ([]*Product, error) {
	if len(ids) == 0 {
		return []*Product{}, nil
	}
	var products []*Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, common.NewStoreError("falha ao consultar produtos", err)
	}
	return products, nil
}

// Create 创建商品
// 主写入与关键词索引镜像在同一事务内完成，镜像失败整体回滚
func (s *ProductService) Create(ctx context.Context, req *CreateProductRequest) (*Product, error) {
	if err := s.validateCreate(ctx, req); err != nil {
		return nil, err
	}

	product := &Product{
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		Price:           req.Price,
		Category:        req.Category,
		GoogleDriveLink: req.GoogleDriveLink,
		ImageURL:        req.ImageURL,
		OnSale:          req.OnSale,
		CampaignID:      req.CampaignID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return common.NewStoreError("falha ao criar produto", err)
		}
		if s.mirror != nil {
			if err := s.mirror.Mirror(tx, product); err != nil {
				return common.NewStoreError("falha ao atualizar índice de busca", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.enqueueUpsert(product.ID)
	return product, nil
}

// Update 部分更新商品，未提供的字段保持原值
func (s *ProductService) Update(ctx context.Context, id int64, req *UpdateProductRequest) (*Product, error) {
	updates, err := s.buildUpdates(ctx, req)
	if err != nil {
		return nil, err
	}

	// 空更新是幂等空操作，只需确认记录存在
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	var updated *Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Product{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return common.NewStoreError("falha ao atualizar produto", result.Error)
		}
		if result.RowsAffected == 0 {
			return common.NewNotFoundError("Produto não encontrado.")
		}

		var product Product
		if err := tx.First(&product, id).Error; err != nil {
			return common.NewStoreError("falha ao consultar produto", err)
		}
		if s.mirror != nil {
			// 替换语义：整行重新写入索引
			if err := s.mirror.Mirror(tx, &product); err != nil {
				return common.NewStoreError("falha ao atualizar índice de busca", err)
			}
		}
		updated = &product
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.enqueueUpsert(id)
	return updated, nil
}

// Delete 删除商品
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&Product{}, id)
		if result.Error != nil {
			return common.NewStoreError("falha ao excluir produto", result.Error)
		}
		if result.RowsAffected == 0 {
			return common.NewNotFoundError("Produto não encontrado.")
		}
		if s.mirror != nil {
			if err := s.mirror.Remove(tx, id); err != nil {
				return common.NewStoreError("falha ao atualizar índice de busca", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.queue != nil {
		if err := s.queue.EnqueueDeleteProductVector(id); err != nil {
			logger.Warn("向量删除任务入队失败", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *ProductService) validateCreate(ctx context.Context, req *CreateProductRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return common.NewValidationError("O nome do produto é obrigatório.")
	}
	if req.Price != nil && *req.Price < 0 {
		return common.NewValidationError("O preço do produto não pode ser negativo.")
	}
	if req.CampaignID != nil {
		if err := s.ensureCampaignExists(ctx, *req.CampaignID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProductService) buildUpdates(ctx context.Context, req *UpdateProductRequest) (map[string]any, error) {
	updates := make(map[string]any)

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, common.NewValidationError("O nome do produto é obrigatório.")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, common.NewValidationError("O preço do produto não pode ser negativo.")
		}
		updates["price"] = *req.Price
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.GoogleDriveLink != nil {
		updates["google_drive_link"] = *req.GoogleDriveLink
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.OnSale != nil {
		updates["on_sale"] = *req.OnSale
	}
	if req.CampaignID != nil {
		if err := s.ensureCampaignExists(ctx, *req.CampaignID); err != nil {
			return nil, err
		}
		updates["campaign_id"] = *req.CampaignID
	}

	return updates, nil
}

// ensureCampaignExists 活动引用完整性校验
func (s *ProductService) ensureCampaignExists(ctx context.Context, campaignID int64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Campaign{}).Where("id = ?", campaignID).Count(&count).Error; err != nil {
		return common.NewStoreError("falha ao consultar campanha", err)
	}
	if count == 0 {
		return common.NewValidationError("A campanha informada não existe.")
	}
	return nil
}

func (s *ProductService) enqueueUpsert(productID int64) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueUpsertProductVector(productID); err != nil {
		logger.Warn("向量上送任务入队失败", zap.Int64("product_id", productID), zap.Error(err))
	}
}
