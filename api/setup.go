package api

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"backend/api/handlers/campaigns"
	"backend/api/handlers/products"
	"backend/internal/catalog"
	"backend/internal/config"
	"backend/internal/infra"
	"backend/internal/infra/queue"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/search"
	"backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter 设置并返回 Gin 路由和 Worker 服务器
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server) {
	router := gin.New()

	// 统一归一化 Redis 配置，优先使用 cfg.Redis，再回退到环境变量
	redisCfg := normalizeRedisConfig(cfg.Redis)
	cfg.Redis = redisCfg

	// 初始化 Redis 客户端（嵌入缓存与向量镜像队列，可降级）
	redisClient, err := infra.InitRedis(&redisCfg)
	if err != nil {
		logger.Warn("Redis 不可用，嵌入缓存与向量镜像队列已禁用", zap.Error(err))
		redisClient = nil
	}

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	// 关键词索引：与主库同驱动，建不出索引时自动回落 LIKE
	keywordSearcher := search.NewKeywordSearcher(db)
	if err := keywordSearcher.EnsureIndex(context.Background()); err != nil {
		logger.Warn("全文索引初始化失败，关键词搜索将回落 LIKE", zap.Error(err))
	}

	// 向量化提供者
	embedder, err := initEmbeddingProvider(cfg)
	if err != nil {
		logger.Fatal("初始化向量化提供者失败", zap.Error(err))
	}
	if cfg.Search.Cache.Enabled && redisClient != nil {
		ttl := 7 * 24 * time.Hour
		if parsed, parseErr := time.ParseDuration(cfg.Search.Cache.TTL); parseErr == nil && parsed > 0 {
			ttl = parsed
		}
		cache := search.NewEmbeddingCache(redisClient, cfg.Search.Cache.Prefix, ttl)
		embedder = search.NewCachedEmbeddingProvider(embedder, cache)
	}

	// 托管向量索引
	vectorIndex, err := initVectorIndex(cfg, db)
	if err != nil {
		logger.Fatal("初始化向量索引失败", zap.Error(err))
	}

	// 向量镜像队列，Redis 不可用时跳过（商品写入照常，索引靠补种工具追平）
	var vectorQueue catalog.VectorMirrorQueue
	if redisClient != nil {
		vectorQueue = queue.NewClient(redisCfg)
	}

	// 初始化 Services
	productService := catalog.NewProductService(db, keywordSearcher, vectorQueue)
	campaignService := catalog.NewCampaignService(db)
	semanticSearcher := search.NewSemanticSearcher(embedder, vectorIndex, productService, cfg.Search.TopK)

	// 初始化 Handlers
	productHandler := products.NewProductHandler(productService, keywordSearcher, semanticSearcher)
	campaignHandler := campaigns.NewCampaignHandler(campaignService)

	// 公开端点
	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(db, redisClient, vectorIndex))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(router, productHandler, campaignHandler)

	// 初始化 Worker 服务器（向量镜像任务消费者）
	workerServer := worker.NewServer(redisCfg, productService, embedder, vectorIndex, logger.Get())

	return router, workerServer
}

// initEmbeddingProvider 按配置选择向量化后端
func initEmbeddingProvider(cfg *config.Config) (search.EmbeddingProvider, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Search.Embedding.Provider))
	switch provider {
	case "openai":
		ocfg := cfg.Search.Embedding.OpenAI
		apiKey := ocfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if strings.TrimSpace(apiKey) == "" {
			return nil, fmt.Errorf("未配置 OpenAI API Key")
		}
		return search.NewOpenAIEmbeddingProvider(apiKey, ocfg.BaseURL, ocfg.Model), nil
	case "", "huggingface":
		hcfg := cfg.Search.Embedding.HuggingFace
		apiKey := hcfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("HF_API_KEY")
		}
		return search.NewHuggingFaceEmbeddingProvider(search.HuggingFaceOptions{
			Endpoint:       hcfg.Endpoint,
			APIKey:         apiKey,
			Model:          hcfg.Model,
			Dimension:      hcfg.Dimension,
			TimeoutSeconds: hcfg.TimeoutSeconds,
			MaxRetries:     hcfg.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("未知的向量化提供者: %s", provider)
	}
}

// initVectorIndex 按配置选择向量索引后端
func initVectorIndex(cfg *config.Config, db *gorm.DB) (search.VectorIndex, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Search.Vector.Backend))
	switch backend {
	case "pgvector":
		return search.NewPGVectorIndex(db, embeddingDimension(cfg))
	case "", "pinecone":
		pcfg := cfg.Search.Vector.Pinecone
		apiKey := pcfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("PINECONE_API_KEY")
		}
		return search.NewPineconeIndex(search.PineconeOptions{
			Endpoint:        pcfg.Endpoint,
			ControlPlane:    pcfg.ControlPlane,
			APIKey:          apiKey,
			IndexName:       pcfg.IndexName,
			VectorDimension: pcfg.VectorDimension,
			Metric:          pcfg.Metric,
			Cloud:           pcfg.Cloud,
			Region:          pcfg.Region,
			TimeoutSeconds:  pcfg.TimeoutSeconds,
			MaxRetries:      pcfg.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("未知的向量索引后端: %s", backend)
	}
}

// embeddingDimension 当前向量化后端的输出维度
func embeddingDimension(cfg *config.Config) int {
	if strings.EqualFold(strings.TrimSpace(cfg.Search.Embedding.Provider), "openai") {
		return cfg.Search.Embedding.OpenAI.Dimension
	}
	return cfg.Search.Embedding.HuggingFace.Dimension
}

// RequestLogger 请求日志中间件，给每个请求分配 request_id
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Writer.Header().Set("X-Request-ID", requestID)

		// 处理请求
		c.Next()

		// 记录日志
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestID),
		)
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowedOrigins := getEnvList("CORS_ALLOW_ORIGINS")
		origin := c.GetHeader("Origin")
		switch {
		case len(allowedOrigins) == 0:
			// 开发缺省：全部放行
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && stringInSlice(origin, allowedOrigins):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		default:
			// 未匹配则不设置 Allow-Origin，浏览器将拦截
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		allowedHeaders := defaultIfEmpty(
			getEnvList("CORS_ALLOW_HEADERS"),
			[]string{
				"Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
				"Accept", "Origin", "Cache-Control", "X-Requested-With",
			},
		)
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))

		allowedMethods := defaultIfEmpty(
			getEnvList("CORS_ALLOW_METHODS"),
			[]string{"POST", "OPTIONS", "GET", "PUT", "DELETE", "PATCH"},
		)
		c.Writer.Header().Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// HealthCheck 健康检查
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "catalog",
		})
	}
}

// ReadinessCheck 就绪检查：数据库必须可达，Redis 与向量索引只上报状态
func ReadinessCheck(db *gorm.DB, redisClient *redis.Client, index search.VectorIndex) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(503, gin.H{
				"status": "not_ready",
				"reason": "database connection error",
			})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(503, gin.H{
				"status": "not_ready",
				"reason": "database ping failed",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		redisStatus := "disabled"
		if redisClient != nil {
			redisStatus = "connected"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				redisStatus = "unreachable"
			}
		}

		indexStatus := "reachable"
		if err := index.Ensure(ctx); err != nil {
			indexStatus = "unreachable"
		}

		c.JSON(200, gin.H{
			"status":       "ready",
			"database":     "connected",
			"redis":        redisStatus,
			"vector_index": indexStatus,
		})
	}
}

// getEnvList 读取逗号分隔的环境变量列表
func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var res []string
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			res = append(res, v)
		}
	}
	return res
}

// stringInSlice 判断字符串是否存在
func stringInSlice(target string, list []string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// defaultIfEmpty 返回非空列表或默认值
func defaultIfEmpty(list []string, def []string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}

func normalizeRedisConfig(cfg config.RedisConfig) config.RedisConfig {
	resolved := cfg
	resolved.Host = strings.TrimSpace(resolved.Host)
	if resolved.Host == "" {
		if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
			host, port := parseRedisAddr(addr)
			if host != "" {
				resolved.Host = host
			}
			if resolved.Port == 0 && port > 0 {
				resolved.Port = port
			}
		}
	}
	if resolved.Host == "" {
		resolved.Host = "localhost"
	}
	if resolved.Port == 0 {
		resolved.Port = 6379
	}
	return resolved
}

func parseRedisAddr(addr string) (string, int) {
	if strings.TrimSpace(addr) == "" {
		return "", 0
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr), 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}
