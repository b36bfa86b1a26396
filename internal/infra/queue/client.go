package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/config"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
// 商品写路径在事务提交后通过它异步镜像外部向量索引
type Client interface {
	EnqueueUpsertProductVector(productID int64) error
	EnqueueDeleteProductVector(productID int64) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &asynqClient{client: client}
}

func (c *asynqClient) EnqueueUpsertProductVector(productID int64) error {
	payload, err := json.Marshal(tasks.UpsertProductVectorPayload{ProductID: productID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeUpsertProductVector, payload)

	// 外部服务调用，重试 5 次，超时 2 分钟
	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("vector"), // 向量镜像专用队列
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}

	return nil
}

func (c *asynqClient) EnqueueDeleteProductVector(productID int64) error {
	payload, err := json.Marshal(tasks.DeleteProductVectorPayload{ProductID: productID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeDeleteProductVector, payload)

	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("vector"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}

	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
