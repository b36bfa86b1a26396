package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/test", handler)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestResponseEnvelopes(t *testing.T) {
	t.Run("成功包络", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			ResponseSuccess(c, gin.H{"id": 1})
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"success","data":{"id":1}}`, w.Body.String())
	})

	t.Run("自定义提示信息", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			ResponseSuccessMessage(c, "Nenhum produto similar encontrado.", []int{})
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Nenhum produto similar encontrado.","data":[]}`, w.Body.String())
	})

	t.Run("创建成功", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			ResponseCreated(c, gin.H{"id": 1})
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestResponseError(t *testing.T) {
	t.Run("校验错误映射400", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			ResponseError(c, NewValidationError("O nome do produto é obrigatório."))
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"O nome do produto é obrigatório."}`, w.Body.String())
	})

	t.Run("资源不存在映射404", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			ResponseError(c, NewNotFoundError("Produto não encontrado."))
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("外部服务错误透出底层信息", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			ResponseError(c, NewExternalServiceError("Erro ao buscar produtos com IA.", errors.New("timeout")))
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"Erro ao buscar produtos com IA.: timeout"}`, w.Body.String())
	})

	t.Run("未分类错误按500处理", func(t *testing.T) {
		w := performRequest(func(c *gin.Context) {
			ResponseError(c, errors.New("algo inesperado"))
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(NewValidationError("x")))
	assert.Equal(t, KindNotFound, KindOf(NewNotFoundError("x")))
	assert.Equal(t, KindExternal, KindOf(NewExternalServiceError("x", nil)))
	assert.Equal(t, KindStore, KindOf(errors.New("x")))
}
