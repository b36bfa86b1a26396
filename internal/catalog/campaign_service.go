package catalog

import (
	"context"
	"errors"
	"strings"

	"backend/internal/common"

	"gorm.io/gorm"
)

// CampaignService 活动服务
type CampaignService struct {
	db *gorm.DB
}

// NewCampaignService 创建活动服务
func NewCampaignService(db *gorm.DB) *CampaignService {
	return &CampaignService{db: db}
}

// List 查询活动列表
func (s *CampaignService) List(ctx context.Context) ([]*Campaign, error) {
	var campaigns []*Campaign
	if err := s.db.WithContext(ctx).Order("id").Find(&campaigns).Error; err != nil {
		return nil, common.NewStoreError("falha ao consultar campanhas", err)
	}
	return campaigns, nil
}

// Get 获取活动详情
func (s *CampaignService) Get(ctx context.Context, id int64) (*Campaign, error) {
	var campaign Campaign
	if err := s.db.WithContext(ctx).First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NewNotFoundError("Campanha não encontrada.")
		}
		return nil, common.NewStoreError("falha ao consultar campanha", err)
	}
	return &campaign, nil
}

// ListProducts 查询活动下的商品，按名称排序
func (s *CampaignService) ListProducts(ctx context.Context, campaignID int64) ([]*Product, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, err
	}

	var products []*Product
	if err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("name").
		Find(&products).Error; err != nil {
		return nil, common.NewStoreError("falha ao consultar produtos da campanha", err)
	}
	return products, nil
}

// Create 创建活动
func (s *CampaignService) Create(ctx context.Context, req *CreateCampaignRequest) (*Campaign, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, common.NewValidationError("O título da campanha é obrigatório.")
	}

	campaign := &Campaign{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return nil, common.NewStoreError("falha ao criar campanha", err)
	}
	return campaign, nil
}

// Update 部分更新活动，未提供的字段保持原值
func (s *CampaignService) Update(ctx context.Context, id int64, req *UpdateCampaignRequest) (*Campaign, error) {
	updates := make(map[string]any)

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, common.NewValidationError("O título da campanha é obrigatório.")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}

	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	result := s.db.WithContext(ctx).Model(&Campaign{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, common.NewStoreError("falha ao atualizar campanha", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, common.NewNotFoundError("Campanha não encontrada.")
	}

	return s.Get(ctx, id)
}

// Delete 删除活动
// 同一事务内先将关联商品的 campaign_id 置空再删除活动，商品本身保留
func (s *CampaignService) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Product{}).
			Where("campaign_id = ?", id).
			Update("campaign_id", nil).Error; err != nil {
			return common.NewStoreError("falha ao desvincular produtos da campanha", err)
		}

		result := tx.Delete(&Campaign{}, id)
		if result.Error != nil {
			return common.NewStoreError("falha ao excluir campanha", result.Error)
		}
		if result.RowsAffected == 0 {
			return common.NewNotFoundError("Campanha não encontrada.")
		}
		return nil
	})
}
