package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"

	"backend/internal/catalog"
	"backend/internal/config"
	"backend/internal/infra"
	"backend/internal/logger"
	"backend/internal/search"
)

// 全量补种向量索引：遍历商品表，重新向量化并上送。
// 用于索引初始化、嵌入模型升级或镜像队列长时间不可用后的追平。
func main() {
	env := flag.String("env", "dev", "配置环境 dev/prod/test")
	batchSize := flag.Int("batch", 100, "每批向量化并上送的商品数量")
	dryRun := flag.Bool("dry-run", false, "仅打印不写入向量索引")
	flag.Parse()

	cfg, err := config.Load(*env, "")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer infra.CloseDatabase()

	hcfg := cfg.Search.Embedding.HuggingFace
	embedder, err := search.NewHuggingFaceEmbeddingProvider(search.HuggingFaceOptions{
		Endpoint:       hcfg.Endpoint,
		APIKey:         hcfg.APIKey,
		Model:          hcfg.Model,
		Dimension:      hcfg.Dimension,
		TimeoutSeconds: hcfg.TimeoutSeconds,
		MaxRetries:     hcfg.MaxRetries,
	})
	if err != nil {
		log.Fatalf("初始化向量化提供者失败: %v", err)
	}

	pcfg := cfg.Search.Vector.Pinecone
	index, err := search.NewPineconeIndex(search.PineconeOptions{
		Endpoint:        pcfg.Endpoint,
		ControlPlane:    pcfg.ControlPlane,
		APIKey:          pcfg.APIKey,
		IndexName:       pcfg.IndexName,
		VectorDimension: pcfg.VectorDimension,
		Metric:          pcfg.Metric,
		Cloud:           pcfg.Cloud,
		Region:          pcfg.Region,
		TimeoutSeconds:  pcfg.TimeoutSeconds,
		MaxRetries:      pcfg.MaxRetries,
	})
	if err != nil {
		log.Fatalf("初始化向量索引失败: %v", err)
	}

	ctx := context.Background()
	if err := index.Ensure(ctx); err != nil {
		log.Fatalf("向量索引不可用: %v", err)
	}

	totalSeeded := 0
	for {
		var products []*catalog.Product
		if err := db.WithContext(ctx).
			Order("id ASC").
			Limit(*batchSize).
			Offset(totalSeeded).
			Find(&products).Error; err != nil {
			log.Fatalf("查询 products 失败: %v", err)
		}

		if len(products) == 0 {
			break
		}

		texts := make([]string, len(products))
		for i, p := range products {
			texts[i] = search.IndexText(p)
		}

		if *dryRun {
			fmt.Printf("[dry-run] 计划上送 %d 条向量\n", len(products))
		} else {
			embeddings, err := embedder.EmbedBatch(ctx, texts)
			if err != nil {
				log.Fatalf("向量化失败: %v", err)
			}

			vectors := make([]*search.ProductVector, len(products))
			for i, p := range products {
				vectors[i] = &search.ProductVector{
					ID:     strconv.FormatInt(p.ID, 10),
					Values: embeddings[i],
					Metadata: map[string]any{
						"name":     p.Name,
						"category": p.Category,
					},
				}
			}

			if err := index.Upsert(ctx, vectors); err != nil {
				log.Fatalf("写入向量索引失败: %v", err)
			}
		}

		totalSeeded += len(products)
		fmt.Printf("已处理 %d 件商品\n", totalSeeded)
	}

	fmt.Printf("补种完成，总计 %d 件商品\n", totalSeeded)
}
