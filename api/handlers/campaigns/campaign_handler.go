package campaigns

import (
	"context"
	"strconv"

	"backend/internal/catalog"
	"backend/internal/common"

	"github.com/gin-gonic/gin"
)

// CampaignService 活动服务能力（便于 handler 层单测注入 mock）
type CampaignService interface {
	List(ctx context.Context) ([]*catalog.Campaign, error)
	Get(ctx context.Context, id int64) (*catalog.Campaign, error)
	ListProducts(ctx context.Context, campaignID int64) ([]*catalog.Product, error)
	Create(ctx context.Context, req *catalog.CreateCampaignRequest) (*catalog.Campaign, error)
	Update(ctx context.Context, id int64, req *catalog.UpdateCampaignRequest) (*catalog.Campaign, error)
	Delete(ctx context.Context, id int64) error
}

// CampaignHandler 促销活动管理 Handler
type CampaignHandler struct {
	service CampaignService
}

// NewCampaignHandler 创建 CampaignHandler 实例
func NewCampaignHandler(service CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// ListCampaigns 活动列表
// GET /api/campaigns
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.service.List(c.Request.Context())
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	if campaigns == nil {
		campaigns = []*catalog.Campaign{}
	}
	common.ResponseSuccess(c, campaigns)
}

// GetCampaign 查询单个活动
// GET /api/campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	campaign, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, campaign)
}

// ListCampaignProducts 活动下的商品，活动不存在时返回 404
// GET /api/campaigns/:id/products
func (h *CampaignHandler) ListCampaignProducts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	products, err := h.service.ListProducts(c.Request.Context(), id)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}
	common.ResponseSuccess(c, products)
}

// CreateCampaign 创建活动
// POST /api/campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req catalog.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "Corpo da requisição inválido.")
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, campaign)
}

// UpdateCampaign 部分更新活动
// PUT /api/campaigns/:id
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req catalog.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "Corpo da requisição inválido.")
		return
	}

	campaign, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, campaign)
}

// DeleteCampaign 删除活动，关联商品的 campaign_id 会被置空
// DELETE /api/campaigns/:id
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, nil)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.ResponseBadRequest(c, "ID inválido.")
		return 0, false
	}
	return id, true
}
