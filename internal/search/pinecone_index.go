package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// PineconeOptions 初始化 Pinecone 向量索引的配置
type PineconeOptions struct {
	Endpoint        string // 索引数据面地址，如 https://catalog-products-xxxx.svc.aped-4627-b74a.pinecone.io
	ControlPlane    string // 控制面地址，索引缺失时在此创建，缺省 https://api.pinecone.io
	APIKey          string
	IndexName       string
	VectorDimension int
	Metric          string
	Cloud           string // serverless 部署云厂商，缺省 aws
	Region          string // serverless 部署区域，缺省 us-east-1
	TimeoutSeconds  int
	MaxRetries      int
	HTTPClient      *http.Client
	SkipIndexCheck  bool
}

// PineconeIndex 基于 Pinecone HTTP API 的向量索引实现
type PineconeIndex struct {
	client     *http.Client
	baseURL    string
	controlURL string
	apiKey     string
	indexName  string
	vectorSize int
	metric     string
	cloud      string
	region     string
	maxRetries int
	skipEnsure bool
	ensureOnce sync.Once
	ensureErr  error
}

// NewPineconeIndex 创建 Pinecone 向量索引实例
func NewPineconeIndex(opts PineconeOptions) (*PineconeIndex, error) {
	baseURL := strings.TrimSpace(opts.Endpoint)
	if baseURL == "" {
		return nil, fmt.Errorf("pinecone endpoint 不能为空")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	controlURL := strings.TrimSpace(opts.ControlPlane)
	if controlURL == "" {
		controlURL = "https://api.pinecone.io"
	}
	controlURL = strings.TrimSuffix(controlURL, "/")

	indexName := opts.IndexName
	if indexName == "" {
		indexName = "catalog-products"
	}

	vectorSize := opts.VectorDimension
	if vectorSize <= 0 {
		vectorSize = 768
	}

	metric := opts.Metric
	if metric == "" {
		metric = "cosine"
	}

	cloud := opts.Cloud
	if cloud == "" {
		cloud = "aws"
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}

	return &PineconeIndex{
		client:     client,
		baseURL:    baseURL,
		controlURL: controlURL,
		apiKey:     opts.APIKey,
		indexName:  indexName,
		vectorSize: vectorSize,
		metric:     metric,
		cloud:      cloud,
		region:     region,
		maxRetries: maxRetries,
		skipEnsure: opts.SkipIndexCheck,
	}, nil
}

// Query 查询 topK 个最近邻，只要标识和得分
func (s *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Neighbor, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}
	if len(vector) != s.vectorSize {
		return nil, fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", s.vectorSize, len(vector))
	}
	if err := s.Ensure(ctx); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	req := pineconeQueryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeValues:   false,
		IncludeMetadata: false,
	}

	var resp pineconeQueryResponse
	if err := s.doRequest(ctx, http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		neighbors = append(neighbors, Neighbor{ID: match.ID, Score: match.Score})
	}
	return neighbors, nil
}

// Upsert 写入或替换一批商品向量
func (s *PineconeIndex) Upsert(ctx context.Context, vectors []*ProductVector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := s.Ensure(ctx); err != nil {
		return err
	}

	points := make([]pineconeVector, 0, len(vectors))
	for _, vec := range vectors {
		if vec == nil {
			continue
		}
		if len(vec.Values) != s.vectorSize {
			return fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", s.vectorSize, len(vec.Values))
		}
		points = append(points, pineconeVector{
			ID:       vec.ID,
			Values:   vec.Values,
			Metadata: vec.Metadata,
		})
	}

	req := pineconeUpsertRequest{Vectors: points}
	var resp pineconeUpsertResponse
	if err := s.doRequest(ctx, http.MethodPost, "/vectors/upsert", req, &resp); err != nil {
		return err
	}
	if resp.UpsertedCount < len(points) {
		return fmt.Errorf("pinecone upsert 数量不匹配: 期望 %d 实际 %d", len(points), resp.UpsertedCount)
	}
	return nil
}

// Delete 按 ID 删除向量
func (s *PineconeIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.Ensure(ctx); err != nil {
		return err
	}

	req := pineconeDeleteRequest{IDs: ids}
	return s.doRequest(ctx, http.MethodPost, "/vectors/delete", req, nil)
}

// Ensure 探测索引并校验维度，索引缺失时经控制面创建，只执行一次
func (s *PineconeIndex) Ensure(ctx context.Context) error {
	if s.skipEnsure {
		return nil
	}
	s.ensureOnce.Do(func() {
		// 先探测索引
		var resp pineconeStatsResponse
		err := s.doRequest(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp)
		if err == nil {
			if resp.Dimension != 0 && resp.Dimension != s.vectorSize {
				s.ensureErr = fmt.Errorf("Pinecone 索引维度不匹配: 期望 %d 实际 %d", s.vectorSize, resp.Dimension)
			}
			return
		}

		var apiErr *pineconeAPIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			s.ensureErr = s.createIndex(ctx)
			return
		}
		s.ensureErr = fmt.Errorf("探测 Pinecone 索引失败: %w", err)
	})
	return s.ensureErr
}

// createIndex 在控制面创建 serverless 索引
func (s *PineconeIndex) createIndex(ctx context.Context) error {
	req := pineconeCreateIndexRequest{
		Name:      s.indexName,
		Dimension: s.vectorSize,
		Metric:    s.metric,
		Spec: pineconeIndexSpec{
			Serverless: pineconeServerlessSpec{
				Cloud:  s.cloud,
				Region: s.region,
			},
		},
	}
	if err := s.doURL(ctx, http.MethodPost, s.controlURL+"/indexes", req, nil); err != nil {
		return fmt.Errorf("创建 Pinecone 索引失败: %w", err)
	}
	return nil
}

// doRequest 发起数据面请求
func (s *PineconeIndex) doRequest(ctx context.Context, method, path string, payload any, dest any) error {
	return s.doURL(ctx, method, s.baseURL+path, payload, dest)
}

// doURL 发起请求，对瞬时故障做有限次退避重试
func (s *PineconeIndex) doURL(ctx context.Context, method, url string, payload any, dest any) error {
	var body []byte
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		body = buf
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Api-Key", s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			var errBody pineconeErrorResponse
			_ = json.NewDecoder(resp.Body).Decode(&errBody)
			resp.Body.Close()
			lastErr = &pineconeAPIError{Status: resp.StatusCode, Message: errBody.Message}
			continue
		}
		if resp.StatusCode >= 400 {
			var errBody pineconeErrorResponse
			_ = json.NewDecoder(resp.Body).Decode(&errBody)
			resp.Body.Close()
			return &pineconeAPIError{Status: resp.StatusCode, Message: errBody.Message}
		}

		if dest == nil {
			resp.Body.Close()
			return nil
		}
		err = json.NewDecoder(resp.Body).Decode(dest)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("解析 Pinecone 响应失败: %w", err)
		}
		return nil
	}

	return lastErr
}

// pineconeAPIError Pinecone 返回的 HTTP 错误
type pineconeAPIError struct {
	Status  int
	Message string
}

func (e *pineconeAPIError) Error() string {
	return fmt.Sprintf("pinecone API 错误: %s (%d)", e.Message, e.Status)
}

// --- Pinecone API payloads ---

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type pineconeUpsertRequest struct {
	Vectors []pineconeVector `json:"vectors"`
}

type pineconeUpsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

type pineconeQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []pineconeMatch `json:"matches"`
}

type pineconeMatch struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type pineconeDeleteRequest struct {
	IDs []string `json:"ids"`
}

type pineconeServerlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

type pineconeIndexSpec struct {
	Serverless pineconeServerlessSpec `json:"serverless"`
}

type pineconeCreateIndexRequest struct {
	Name      string            `json:"name"`
	Dimension int               `json:"dimension"`
	Metric    string            `json:"metric"`
	Spec      pineconeIndexSpec `json:"spec"`
}

type pineconeStatsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
}

type pineconeErrorResponse struct {
	Message string `json:"message"`
}
