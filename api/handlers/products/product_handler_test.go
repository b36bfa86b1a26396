package products

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/internal/catalog"
	"backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProductService 函数字段式 Mock
type MockProductService struct {
	ListFunc   func(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error)
	GetFunc    func(ctx context.Context, id int64) (*catalog.Product, error)
	CreateFunc func(ctx context.Context, req *catalog.CreateProductRequest) (*catalog.Product, error)
	UpdateFunc func(ctx context.Context, id int64, req *catalog.UpdateProductRequest) (*catalog.Product, error)
	DeleteFunc func(ctx context.Context, id int64) error
}

func (m *MockProductService) List(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	return m.ListFunc(ctx, filter)
}

func (m *MockProductService) Get(ctx context.Context, id int64) (*catalog.Product, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockProductService) Create(ctx context.Context, req *catalog.CreateProductRequest) (*catalog.Product, error) {
	return m.CreateFunc(ctx, req)
}

func (m *MockProductService) Update(ctx context.Context, id int64, req *catalog.UpdateProductRequest) (*catalog.Product, error) {
	return m.UpdateFunc(ctx, id, req)
}

func (m *MockProductService) Delete(ctx context.Context, id int64) error {
	return m.DeleteFunc(ctx, id)
}

// MockKeywordSearcher 关键词检索 Mock
type MockKeywordSearcher struct {
	SearchFunc func(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error)
}

func (m *MockKeywordSearcher) Search(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	return m.SearchFunc(ctx, query, filter)
}

// MockSemanticSearcher 语义检索 Mock
type MockSemanticSearcher struct {
	SearchFunc func(ctx context.Context, query string) ([]*catalog.Product, error)
}

func (m *MockSemanticSearcher) Search(ctx context.Context, query string) ([]*catalog.Product, error) {
	return m.SearchFunc(ctx, query)
}

func setupProductRouter(service ProductService, keyword KeywordSearcher, semantic SemanticSearcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewProductHandler(service, keyword, semantic)

	router := gin.New()
	group := router.Group("/api/products")
	group.GET("", handler.ListProducts)
	group.GET("/ai-search", handler.AISearch)
	group.GET("/:id", handler.GetProduct)
	group.POST("", handler.CreateProduct)
	group.PUT("/:id", handler.UpdateProduct)
	group.DELETE("/:id", handler.DeleteProduct)
	return router
}

type successEnvelope struct {
	Message string            `json:"message"`
	Data    []json.RawMessage `json:"data"`
}

func TestProductHandler_ListProducts(t *testing.T) {
	t.Run("无search参数走列表", func(t *testing.T) {
		service := &MockProductService{
			ListFunc: func(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error) {
				assert.Equal(t, "Canecas", filter.Category)
				require.NotNil(t, filter.OnSale)
				assert.True(t, *filter.OnSale)
				return []*catalog.Product{{ID: 1, Name: "Caneca Azul"}}, nil
			},
		}
		keyword := &MockKeywordSearcher{
			SearchFunc: func(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error) {
				t.Fatal("não deveria usar busca por palavra-chave")
				return nil, nil
			},
		}
		router := setupProductRouter(service, keyword, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products?category=Canecas&on_sale=true", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp successEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Message)
		assert.Len(t, resp.Data, 1)
	})

	t.Run("有search参数走关键词检索", func(t *testing.T) {
		service := &MockProductService{
			ListFunc: func(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error) {
				t.Fatal("não deveria usar listagem")
				return nil, nil
			},
		}
		keyword := &MockKeywordSearcher{
			SearchFunc: func(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error) {
				assert.Equal(t, "caneca", query)
				return []*catalog.Product{{ID: 1, Name: "Caneca Azul"}}, nil
			},
		}
		router := setupProductRouter(service, keyword, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products?search=caneca", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("空结果序列化为数组", func(t *testing.T) {
		service := &MockProductService{
			ListFunc: func(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error) {
				return nil, nil
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"success","data":[]}`, w.Body.String())
	})

	t.Run("on_sale参数非法返回400", func(t *testing.T) {
		router := setupProductRouter(&MockProductService{}, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products?on_sale=talvez", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProductHandler_AISearch(t *testing.T) {
	t.Run("返回排名结果", func(t *testing.T) {
		semantic := &MockSemanticSearcher{
			SearchFunc: func(ctx context.Context, query string) ([]*catalog.Product, error) {
				assert.Equal(t, "presente para café", query)
				return []*catalog.Product{{ID: 2, Name: "Caneca Térmica"}, {ID: 1, Name: "Caneca Azul"}}, nil
			},
		}
		router := setupProductRouter(&MockProductService{}, &MockKeywordSearcher{}, semantic)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products/ai-search?query=presente%20para%20caf%C3%A9", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp successEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Message)
		require.Len(t, resp.Data, 2)

		var first catalog.Product
		require.NoError(t, json.Unmarshal(resp.Data[0], &first))
		assert.Equal(t, int64(2), first.ID)
	})

	t.Run("零结果返回专属提示", func(t *testing.T) {
		semantic := &MockSemanticSearcher{
			SearchFunc: func(ctx context.Context, query string) ([]*catalog.Product, error) {
				return []*catalog.Product{}, nil
			},
		}
		router := setupProductRouter(&MockProductService{}, &MockKeywordSearcher{}, semantic)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products/ai-search?query=algo", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Nenhum produto similar encontrado.","data":[]}`, w.Body.String())
	})

	t.Run("缺少query返回400", func(t *testing.T) {
		semantic := &MockSemanticSearcher{
			SearchFunc: func(ctx context.Context, query string) ([]*catalog.Product, error) {
				return nil, common.NewValidationError("O parâmetro 'query' é obrigatório.")
			},
		}
		router := setupProductRouter(&MockProductService{}, &MockKeywordSearcher{}, semantic)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products/ai-search", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"O parâmetro 'query' é obrigatório."}`, w.Body.String())
	})

	t.Run("外部服务失败返回500并透出底层信息", func(t *testing.T) {
		semantic := &MockSemanticSearcher{
			SearchFunc: func(ctx context.Context, query string) ([]*catalog.Product, error) {
				return nil, common.NewExternalServiceError("Erro ao buscar produtos com IA.", errors.New("índice fora do ar"))
			},
		}
		router := setupProductRouter(&MockProductService{}, &MockKeywordSearcher{}, semantic)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products/ai-search?query=caneca", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var resp common.ErrorEnvelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "Erro ao buscar produtos com IA.")
		assert.Contains(t, resp.Error, "índice fora do ar")
	})
}

func TestProductHandler_GetProduct(t *testing.T) {
	t.Run("成功返回商品", func(t *testing.T) {
		service := &MockProductService{
			GetFunc: func(ctx context.Context, id int64) (*catalog.Product, error) {
				assert.Equal(t, int64(7), id)
				return &catalog.Product{ID: 7, Name: "Caneca Azul"}, nil
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products/7", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("不存在返回404", func(t *testing.T) {
		service := &MockProductService{
			GetFunc: func(ctx context.Context, id int64) (*catalog.Product, error) {
				return nil, common.NewNotFoundError("Produto não encontrado.")
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products/999", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Produto não encontrado."}`, w.Body.String())
	})

	t.Run("ID非法返回400", func(t *testing.T) {
		router := setupProductRouter(&MockProductService{}, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/products/abc", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"ID inválido."}`, w.Body.String())
	})
}

func TestProductHandler_CreateProduct(t *testing.T) {
	t.Run("成功返回201", func(t *testing.T) {
		service := &MockProductService{
			CreateFunc: func(ctx context.Context, req *catalog.CreateProductRequest) (*catalog.Product, error) {
				assert.Equal(t, "Caneca Azul", req.Name)
				return &catalog.Product{ID: 1, Name: req.Name}, nil
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		body, _ := json.Marshal(map[string]any{"name": "Caneca Azul", "price": 39.9})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/products", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("校验失败返回400", func(t *testing.T) {
		service := &MockProductService{
			CreateFunc: func(ctx context.Context, req *catalog.CreateProductRequest) (*catalog.Product, error) {
				return nil, common.NewValidationError("O nome do produto é obrigatório.")
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/products", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"O nome do produto é obrigatório."}`, w.Body.String())
	})

	t.Run("JSON非法返回400", func(t *testing.T) {
		router := setupProductRouter(&MockProductService{}, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/products", bytes.NewReader([]byte(`{invalid`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProductHandler_UpdateProduct(t *testing.T) {
	t.Run("部分更新透传指针字段", func(t *testing.T) {
		service := &MockProductService{
			UpdateFunc: func(ctx context.Context, id int64, req *catalog.UpdateProductRequest) (*catalog.Product, error) {
				assert.Equal(t, int64(7), id)
				assert.Nil(t, req.Name)
				require.NotNil(t, req.Price)
				assert.Equal(t, 29.9, *req.Price)
				return &catalog.Product{ID: 7, Name: "Caneca Azul"}, nil
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/products/7", bytes.NewReader([]byte(`{"price":29.9}`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("不存在返回404", func(t *testing.T) {
		service := &MockProductService{
			UpdateFunc: func(ctx context.Context, id int64, req *catalog.UpdateProductRequest) (*catalog.Product, error) {
				return nil, common.NewNotFoundError("Produto não encontrado.")
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/products/999", bytes.NewReader([]byte(`{"name":"Outro"}`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	t.Run("成功返回空data", func(t *testing.T) {
		service := &MockProductService{
			DeleteFunc: func(ctx context.Context, id int64) error {
				assert.Equal(t, int64(7), id)
				return nil
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/products/7", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"success","data":null}`, w.Body.String())
	})

	t.Run("重复删除返回404", func(t *testing.T) {
		service := &MockProductService{
			DeleteFunc: func(ctx context.Context, id int64) error {
				return common.NewNotFoundError("Produto não encontrado.")
			},
		}
		router := setupProductRouter(service, &MockKeywordSearcher{}, &MockSemanticSearcher{})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/products/7", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
