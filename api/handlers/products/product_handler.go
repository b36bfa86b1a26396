package products

import (
	"context"
	"strconv"
	"time"

	"backend/internal/catalog"
	"backend/internal/common"
	"backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// ProductService 商品服务能力（便于 handler 层单测注入 mock）
type ProductService interface {
	List(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error)
	Get(ctx context.Context, id int64) (*catalog.Product, error)
	Create(ctx context.Context, req *catalog.CreateProductRequest) (*catalog.Product, error)
	Update(ctx context.Context, id int64, req *catalog.UpdateProductRequest) (*catalog.Product, error)
	Delete(ctx context.Context, id int64) error
}

// KeywordSearcher 关键词检索能力
type KeywordSearcher interface {
	Search(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error)
}

// SemanticSearcher 语义检索能力
type SemanticSearcher interface {
	Search(ctx context.Context, query string) ([]*catalog.Product, error)
}

// ProductHandler 商品管理 Handler
type ProductHandler struct {
	service  ProductService
	keyword  KeywordSearcher
	semantic SemanticSearcher
}

// NewProductHandler 创建 ProductHandler 实例
func NewProductHandler(service ProductService, keyword KeywordSearcher, semantic SemanticSearcher) *ProductHandler {
	return &ProductHandler{service: service, keyword: keyword, semantic: semantic}
}

// ListProducts 商品列表 / 关键词搜索门面
// GET /api/products?search=caneca&category=Canecas&on_sale=true
// 带 search 参数走关键词检索，否则按名称排序列出全部
func (h *ProductHandler) ListProducts(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	searchQuery := c.Query("search")
	path := "list"
	if searchQuery != "" {
		path = "keyword"
	}

	start := time.Now()
	var (
		products []*catalog.Product
		err      error
	)
	if searchQuery != "" {
		products, err = h.keyword.Search(c.Request.Context(), searchQuery, filter)
	} else {
		products, err = h.service.List(c.Request.Context(), filter)
	}
	metrics.SearchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SearchesTotal.WithLabelValues(path, "failed").Inc()
		common.ResponseError(c, err)
		return
	}

	metrics.SearchesTotal.WithLabelValues(path, "success").Inc()
	metrics.SearchResults.WithLabelValues(path).Observe(float64(len(products)))
	common.ResponseSuccess(c, nonNil(products))
}

// AISearch 语义搜索
// GET /api/products/ai-search?query=presente para quem gosta de café
func (h *ProductHandler) AISearch(c *gin.Context) {
	query := c.Query("query")

	products, err := h.semantic.Search(c.Request.Context(), query)
	if err != nil {
		common.ResponseError(c, err)
		return
	}

	if len(products) == 0 {
		common.ResponseSuccessMessage(c, "Nenhum produto similar encontrado.", []*catalog.Product{})
		return
	}
	common.ResponseSuccess(c, products)
}

// GetProduct 查询单个商品
// GET /api/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, product)
}

// CreateProduct 创建商品
// POST /api/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req catalog.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "Corpo da requisição inválido.")
		return
	}

	product, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseCreated(c, product)
}

// UpdateProduct 部分更新商品，未出现的字段保持不变
// PUT /api/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req catalog.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "Corpo da requisição inválido.")
		return
	}

	product, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		common.ResponseError(c, err)
		return
	}
	common.ResponseSuccess(c, product)
}

// DeleteProduct 删除商品
// DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
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

// parseID 解析路径中的商品 ID，非法时直接回写 400
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.ResponseBadRequest(c, "ID inválido.")
		return 0, false
	}
	return id, true
}

// parseFilter 解析公共过滤参数，on_sale 非法时回写 400
func parseFilter(c *gin.Context) (catalog.ProductFilter, bool) {
	filter := catalog.ProductFilter{Category: c.Query("category")}

	if raw := c.Query("on_sale"); raw != "" {
		onSale, err := strconv.ParseBool(raw)
		if err != nil {
			common.ResponseBadRequest(c, "O parâmetro 'on_sale' é inválido.")
			return filter, false
		}
		filter.OnSale = &onSale
	}
	return filter, true
}

// nonNil 保证空结果序列化为 [] 而不是 null
func nonNil(products []*catalog.Product) []*catalog.Product {
	if products == nil {
		return []*catalog.Product{}
	}
	return products
}
