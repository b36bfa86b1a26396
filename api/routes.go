package api

import (
	"backend/api/handlers/campaigns"
	"backend/api/handlers/products"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 挂载 /api 业务路由
func RegisterRoutes(router *gin.Engine, productHandler *products.ProductHandler, campaignHandler *campaigns.CampaignHandler) {
	api := router.Group("/api")

	// 商品管理 API
	productsGroup := api.Group("/products")
	{
		productsGroup.GET("", productHandler.ListProducts)
		productsGroup.GET("/ai-search", productHandler.AISearch)
		productsGroup.GET("/:id", productHandler.GetProduct)
		productsGroup.POST("", productHandler.CreateProduct)
		productsGroup.PUT("/:id", productHandler.UpdateProduct)
		productsGroup.DELETE("/:id", productHandler.DeleteProduct)
	}

	// 促销活动 API
	campaignsGroup := api.Group("/campaigns")
	{
		campaignsGroup.GET("", campaignHandler.ListCampaigns)
		campaignsGroup.GET("/:id", campaignHandler.GetCampaign)
		campaignsGroup.GET("/:id/products", campaignHandler.ListCampaignProducts)
		campaignsGroup.POST("", campaignHandler.CreateCampaign)
		campaignsGroup.PUT("/:id", campaignHandler.UpdateCampaign)
		campaignsGroup.DELETE("/:id", campaignHandler.DeleteCampaign)
	}
}
