package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPineconeTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *PineconeIndex) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	index, err := NewPineconeIndex(PineconeOptions{
		Endpoint:        server.URL,
		APIKey:          "test-key",
		VectorDimension: 3,
		MaxRetries:      2,
	})
	require.NoError(t, err)
	return server, index
}

func testVector() []float32 { return []float32{0.1, 0.2, 0.3} }

func TestPineconeIndex_Query(t *testing.T) {
	var gotAuth string
	var gotBody pineconeQueryRequest

	_, index := newPineconeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/describe_index_stats":
			json.NewEncoder(w).Encode(map[string]any{"dimension": 3})
		case "/query":
			gotAuth = r.Header.Get("Api-Key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]any{
				"matches": []map[string]any{
					{"id": "1", "score": 0.91},
					{"id": "7", "score": 0.42},
				},
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	neighbors, err := index.Query(context.Background(), testVector(), 5)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, "1", neighbors[0].ID)
	assert.InDelta(t, 0.91, neighbors[0].Score, 1e-9)

	assert.Equal(t, "test-key", gotAuth)
	assert.Equal(t, 5, gotBody.TopK)
	assert.False(t, gotBody.IncludeValues)
	assert.False(t, gotBody.IncludeMetadata)
}

func TestPineconeIndex_QueryDimensionMismatch(t *testing.T) {
	_, index := newPineconeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"dimension": 3})
	})

	_, err := index.Query(context.Background(), []float32{0.1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度不匹配")
}

func TestPineconeIndex_UpsertAndDelete(t *testing.T) {
	var upserted pineconeUpsertRequest
	var deleted pineconeDeleteRequest

	_, index := newPineconeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/describe_index_stats":
			json.NewEncoder(w).Encode(map[string]any{"dimension": 3})
		case "/vectors/upsert":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			json.NewEncoder(w).Encode(map[string]any{"upsertedCount": len(upserted.Vectors)})
		case "/vectors/delete":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&deleted))
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	err := index.Upsert(context.Background(), []*ProductVector{
		{ID: "1", Values: testVector(), Metadata: map[string]any{"name": "Caneca Azul"}},
	})
	require.NoError(t, err)
	require.Len(t, upserted.Vectors, 1)
	assert.Equal(t, "1", upserted.Vectors[0].ID)

	require.NoError(t, index.Delete(context.Background(), []string{"1"}))
	assert.Equal(t, []string{"1"}, deleted.IDs)
}

func TestPineconeIndex_EnsureDimensionMismatch(t *testing.T) {
	_, index := newPineconeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"dimension": 768})
	})

	err := index.Ensure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度不匹配")

	// sync.Once 缓存结果，后续调用同样失败
	require.Error(t, index.Ensure(context.Background()))
}

func TestPineconeIndex_EnsureCreatesMissingIndex(t *testing.T) {
	var created pineconeCreateIndexRequest
	var createCalls int32

	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/indexes", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		atomic.AddInt32(&createCalls, 1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"name": created.Name})
	}))
	t.Cleanup(control.Close)

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/describe_index_stats", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"message": "index not found"})
	}))
	t.Cleanup(data.Close)

	index, err := NewPineconeIndex(PineconeOptions{
		Endpoint:        data.URL,
		ControlPlane:    control.URL,
		APIKey:          "test-key",
		IndexName:       "catalog-products",
		VectorDimension: 3,
		Metric:          "cosine",
	})
	require.NoError(t, err)

	require.NoError(t, index.Ensure(context.Background()))

	assert.Equal(t, "catalog-products", created.Name)
	assert.Equal(t, 3, created.Dimension)
	assert.Equal(t, "cosine", created.Metric)
	assert.Equal(t, "aws", created.Spec.Serverless.Cloud)
	assert.Equal(t, "us-east-1", created.Spec.Serverless.Region)

	// sync.Once 缓存结果，重复调用不再创建
	require.NoError(t, index.Ensure(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&createCalls))
}

func TestPineconeIndex_RetriesTransientErrors(t *testing.T) {
	var calls int32

	_, index := newPineconeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/describe_index_stats" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		// 前两次 503，第三次成功
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"message": "temporariamente indisponível"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"dimension": 3})
	})

	require.NoError(t, index.Ensure(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPineconeIndex_FailsFastOnClientError(t *testing.T) {
	var calls int32

	_, index := newPineconeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"message": "invalid api key"})
	})

	err := index.Ensure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	// 4xx（除 429 外）不重试
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
