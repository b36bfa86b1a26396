package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"backend/internal/catalog"
	"backend/internal/config"
	"backend/internal/infra"
	"backend/internal/logger"
	"backend/internal/search"

	"gorm.io/gorm"
)

// 从 JSON 文件导入商品目录。写入走 ProductService，
// 关键词索引镜像与校验规则和线上一致。
func main() {
	env := flag.String("env", "dev", "配置环境 dev/prod/test")
	file := flag.String("file", "seed/products.json", "商品 JSON 文件路径")
	replace := flag.Bool("replace", false, "导入前清空现有商品")
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

	if err := infra.AutoMigrate(db, &catalog.Product{}, &catalog.Campaign{}); err != nil {
		log.Fatalf("迁移表结构失败: %v", err)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("读取种子文件失败: %v", err)
	}

	var requests []catalog.CreateProductRequest
	if err := json.Unmarshal(raw, &requests); err != nil {
		log.Fatalf("解析种子文件失败: %v", err)
	}

	mirror := search.NewKeywordSearcher(db)
	if err := mirror.EnsureIndex(context.Background()); err != nil {
		log.Printf("全文索引初始化失败，关键词搜索将回落 LIKE: %v", err)
	}

	imported, err := importProducts(context.Background(), db, mirror, requests, *replace)
	if err != nil {
		log.Fatalf("导入失败，已整体回滚: %v", err)
	}

	fmt.Printf("导入完成，总计 %d 件商品\n", imported)
}

// importProducts 在单个事务内导入全部商品，任一失败整体回滚
func importProducts(ctx context.Context, db *gorm.DB, mirror catalog.KeywordMirror, requests []catalog.CreateProductRequest, replace bool) (int, error) {
	imported := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 向量镜像队列留空：种子导入后用 index_seeder 全量补种
		service := catalog.NewProductService(tx, mirror, nil)

		if replace {
			var existing []*catalog.Product
			if err := tx.Find(&existing).Error; err != nil {
				return fmt.Errorf("查询现有商品失败: %w", err)
			}
			for _, p := range existing {
				if err := service.Delete(ctx, p.ID); err != nil {
					return fmt.Errorf("删除商品 %d 失败: %w", p.ID, err)
				}
			}
		}

		for i := range requests {
			if _, err := service.Create(ctx, &requests[i]); err != nil {
				return fmt.Errorf("导入第 %d 件商品失败: %w", i+1, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}
