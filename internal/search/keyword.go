package search

import (
	"context"
	"fmt"
	"strings"

	"backend/internal/catalog"
	"backend/internal/common"
	"backend/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KeywordSearcher 关键词搜索适配器
// 只做本地计算，绝不调用外部服务
type KeywordSearcher interface {
	// Search 自由文本检索；空查询返回全部商品（按名称排序）
	Search(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error)
	// Mirror 在事务内将商品行同步进文本索引（替换语义）
	Mirror(tx *gorm.DB, p *catalog.Product) error
	// Remove 在事务内将商品行移出文本索引
	Remove(tx *gorm.DB, productID int64) error
	// EnsureIndex 建立文本索引，失败时检索自动回落到 LIKE
	EnsureIndex(ctx context.Context) error
}

// NewKeywordSearcher 按数据库方言选择实现
func NewKeywordSearcher(db *gorm.DB) KeywordSearcher {
	switch db.Dialector.Name() {
	case "postgres":
		return &pgKeywordSearcher{db: db}
	default:
		return &sqliteKeywordSearcher{db: db}
	}
}

// --- SQLite FTS5 实现 ---

// sqliteKeywordSearcher 基于 FTS5 虚表的检索器
// 虚表行的 rowid 即商品 ID，由写路径逐行维护
type sqliteKeywordSearcher struct {
	db        *gorm.DB
	available bool
}

// EnsureIndex 创建 FTS5 虚表
func (s *sqliteKeywordSearcher) EnsureIndex(ctx context.Context) error {
	err := s.db.WithContext(ctx).Exec(
		`CREATE VIRTUAL TABLE IF NOT EXISTS products_fts USING fts5(name, description, category)`,
	).Error
	if err != nil {
		logger.Warn("FTS5 索引不可用，关键词搜索回落到 LIKE", zap.Error(err))
		s.available = false
		return fmt.Errorf("创建FTS5索引失败: %w", err)
	}
	s.available = true
	return nil
}

func (s *sqliteKeywordSearcher) Search(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return listAllByName(ctx, s.db, filter)
	}

	if !s.available {
		return likeFallback(ctx, s.db, query, filter)
	}

	match := buildFTSQuery(query)
	if match == "" {
		return listAllByName(ctx, s.db, filter)
	}

	sql := `
		SELECT products.*
		FROM products_fts
		JOIN products ON products.id = products_fts.rowid
		WHERE products_fts MATCH ?
	`
	args := []any{match}
	if filter.Category != "" {
		sql += " AND products.category = ?"
		args = append(args, filter.Category)
	}
	if filter.OnSale != nil {
		sql += " AND products.on_sale = ?"
		args = append(args, *filter.OnSale)
	}
	sql += " ORDER BY bm25(products_fts)"

	var products []*catalog.Product
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&products).Error; err != nil {
		return nil, common.NewStoreError("falha na busca por palavra-chave", err)
	}
	return products, nil
}

// Mirror 替换语义：先删后插，rowid 固定为商品 ID
func (s *sqliteKeywordSearcher) Mirror(tx *gorm.DB, p *catalog.Product) error {
	if !s.available {
		return nil
	}
	if err := tx.Exec(`DELETE FROM products_fts WHERE rowid = ?`, p.ID).Error; err != nil {
		return fmt.Errorf("清理索引行失败: %w", err)
	}
	if err := tx.Exec(
		`INSERT INTO products_fts(rowid, name, description, category) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Category,
	).Error; err != nil {
		return fmt.Errorf("写入索引行失败: %w", err)
	}
	return nil
}

func (s *sqliteKeywordSearcher) Remove(tx *gorm.DB, productID int64) error {
	if !s.available {
		return nil
	}
	if err := tx.Exec(`DELETE FROM products_fts WHERE rowid = ?`, productID).Error; err != nil {
		return fmt.Errorf("删除索引行失败: %w", err)
	}
	return nil
}

// buildFTSQuery 构建 FTS5 MATCH 查询
// 词项加引号防注入，末词带 * 实现前缀匹配
func buildFTSQuery(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return ""
	}

	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, `""`)
		if w != "" {
			terms = append(terms, `"`+w+`"`)
		}
	}
	if len(terms) == 0 {
		return ""
	}

	terms[len(terms)-1] += "*"
	return strings.Join(terms, " ")
}

// --- PostgreSQL 全文搜索实现 ---

// pgKeywordSearcher 基于 to_tsvector/ts_rank_cd 的检索器
// 表达式 GIN 索引由数据库自动维护，Mirror/Remove 无需额外动作
type pgKeywordSearcher struct {
	db        *gorm.DB
	available bool
}

const pgTSVectorExpr = `to_tsvector('simple', coalesce(name,'') || ' ' || coalesce(description,'') || ' ' || coalesce(category,''))`

// EnsureIndex 创建表达式 GIN 索引
func (s *pgKeywordSearcher) EnsureIndex(ctx context.Context) error {
	sql := `
		CREATE INDEX IF NOT EXISTS idx_products_fts
		ON products
		USING GIN (` + pgTSVectorExpr + `)
	`
	if err := s.db.WithContext(ctx).Exec(sql).Error; err != nil {
		logger.Warn("全文索引不可用，关键词搜索回落到 LIKE", zap.Error(err))
		s.available = false
		return fmt.Errorf("创建全文索引失败: %w", err)
	}
	s.available = true
	return nil
}

func (s *pgKeywordSearcher) Search(ctx context.Context, query string, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return listAllByName(ctx, s.db, filter)
	}

	if !s.available {
		return likeFallback(ctx, s.db, query, filter)
	}

	tsQuery := buildTSQuery(query)
	if tsQuery == "" {
		return listAllByName(ctx, s.db, filter)
	}

	sql := `
		SELECT *
		FROM products
		WHERE ` + pgTSVectorExpr + ` @@ to_tsquery('simple', ?)
	`
	args := []any{tsQuery}
	if filter.Category != "" {
		sql += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.OnSale != nil {
		sql += " AND on_sale = ?"
		args = append(args, *filter.OnSale)
	}
	sql += " ORDER BY ts_rank_cd(" + pgTSVectorExpr + ", to_tsquery('simple', ?)) DESC"
	args = append(args, tsQuery)

	var products []*catalog.Product
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&products).Error; err != nil {
		return nil, common.NewStoreError("falha na busca por palavra-chave", err)
	}
	return products, nil
}

func (s *pgKeywordSearcher) Mirror(tx *gorm.DB, p *catalog.Product) error {
	return nil
}

func (s *pgKeywordSearcher) Remove(tx *gorm.DB, productID int64) error {
	return nil
}

// buildTSQuery 构建 tsquery
// 词项用 | 连接提高召回率，末词带 :* 实现前缀匹配
func buildTSQuery(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return ""
	}

	escaped := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, "'", "''")
		w = strings.ReplaceAll(w, "\\", "\\\\")
		w = strings.ReplaceAll(w, ":", "")
		w = strings.ReplaceAll(w, "&", "")
		w = strings.ReplaceAll(w, "|", "")
		w = strings.ReplaceAll(w, "!", "")
		w = strings.ReplaceAll(w, "(", "")
		w = strings.ReplaceAll(w, ")", "")
		if w != "" {
			escaped = append(escaped, w)
		}
	}
	if len(escaped) == 0 {
		return ""
	}

	escaped[len(escaped)-1] += ":*"
	return strings.Join(escaped, " | ")
}

// --- 公共回落路径 ---

// listAllByName 空查询语义：全部商品按名称排序
func listAllByName(ctx context.Context, db *gorm.DB, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	query := db.WithContext(ctx).Model(&catalog.Product{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.OnSale != nil {
		query = query.Where("on_sale = ?", *filter.OnSale)
	}

	var products []*catalog.Product
	if err := query.Order("name").Find(&products).Error; err != nil {
		return nil, common.NewStoreError("falha ao consultar produtos", err)
	}
	return products, nil
}

// likeFallback 无文本索引时的大小写不敏感子串匹配，按名称排序
func likeFallback(ctx context.Context, db *gorm.DB, query string, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	q := db.WithContext(ctx).Model(&catalog.Product{}).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.OnSale != nil {
		q = q.Where("on_sale = ?", *filter.OnSale)
	}

	var products []*catalog.Product
	if err := q.Order("name").Find(&products).Error; err != nil {
		return nil, common.NewStoreError("falha na busca por palavra-chave", err)
	}
	return products, nil
}
