package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceOptions HuggingFace 推理 API 配置
type HuggingFaceOptions struct {
	Endpoint       string // 不含模型名的基础地址
	APIKey         string
	Model          string
	Dimension      int
	TimeoutSeconds int
	MaxRetries     int
	HTTPClient     *http.Client
}

// HuggingFaceEmbeddingProvider 基于 HuggingFace feature-extraction 流水线的向量化提供者
type HuggingFaceEmbeddingProvider struct {
	client     *http.Client
	url        string
	apiKey     string
	model      string
	dimension  int
	maxRetries int
}

// NewHuggingFaceEmbeddingProvider 创建 HuggingFace 向量化提供者
func NewHuggingFaceEmbeddingProvider(opts HuggingFaceOptions) (*HuggingFaceEmbeddingProvider, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "sentence-transformers/paraphrase-multilingual-mpnet-base-v2"
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = "https://api-inference.huggingface.co/pipeline/feature-extraction"
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = 768
	}

	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = 15
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}

	return &HuggingFaceEmbeddingProvider{
		client:     client,
		url:        endpoint + "/" + model,
		apiKey:     opts.APIKey,
		model:      model,
		dimension:  dimension,
		maxRetries: maxRetries,
	}, nil
}

// Embed 将文本转换为向量
func (p *HuggingFaceEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("文本不能为空")
	}

	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("HuggingFace API 返回空向量")
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化文本
func (p *HuggingFaceEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(map[string]any{"inputs": texts})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	body, err := p.doRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	vectors, err := parseEmbeddings(body, len(texts))
	if err != nil {
		return nil, err
	}

	for i, vec := range vectors {
		if len(vec) != p.dimension {
			return nil, fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d (第 %d 条)", p.dimension, len(vec), i)
		}
	}

	return vectors, nil
}

// GetModel 获取当前使用的模型
func (p *HuggingFaceEmbeddingProvider) GetModel() string {
	return p.model
}

// GetProviderName 获取提供商名称
func (p *HuggingFaceEmbeddingProvider) GetProviderName() string {
	return "huggingface"
}

// doRequest 发起推理请求，对瞬时故障做有限次退避重试
func (p *HuggingFaceEmbeddingProvider) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HuggingFace API 错误: %s (%d)", strings.TrimSpace(string(body)), resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HuggingFace API 错误: %s (%d)", strings.TrimSpace(string(body)), resp.StatusCode)
		}

		return body, nil
	}

	return nil, fmt.Errorf("调用 HuggingFace API 失败: %w", lastErr)
}

// parseEmbeddings 解析推理结果
// 单条输入时部分部署直接返回一维数组，统一归一化为二维
func parseEmbeddings(body []byte, expected int) ([][]float32, error) {
	var matrix [][]float32
	if err := json.Unmarshal(body, &matrix); err == nil {
		if len(matrix) != expected {
			return nil, fmt.Errorf("HuggingFace API 返回向量数量不匹配: 期望 %d 实际 %d", expected, len(matrix))
		}
		return matrix, nil
	}

	var single []float32
	if err := json.Unmarshal(body, &single); err == nil && expected == 1 {
		return [][]float32{single}, nil
	}

	return nil, fmt.Errorf("解析 HuggingFace 响应失败: %s", strings.TrimSpace(string(body)))
}
