package catalog

import (
	"time"
)

// Product 商品模型
type Product struct {
	ID              int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string   `gorm:"type:varchar(200);not null" json:"name"`            // 名称（必填）
	Description     string   `gorm:"type:text" json:"description"`                      // 描述
	Price           *float64 `gorm:"type:decimal(10,2)" json:"price"`                   // 价格（非负）
	Category        string   `gorm:"type:varchar(100);index" json:"category"`           // 分类标签
	GoogleDriveLink string   `gorm:"type:text" json:"google_drive_link"`                // 外部样机链接
	ImageURL        string   `gorm:"type:text" json:"image_url"`                        // 图片地址
	OnSale          bool     `gorm:"default:false" json:"on_sale"`                      // 促销标记
	CampaignID      *int64   `gorm:"index" json:"campaign_id"`                          // 所属活动（可空）

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// Campaign 活动模型
// 删除活动时商品的 campaign_id 置空，商品本身保留
type Campaign struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"type:varchar(200);not null" json:"title"` // 标题（必填）
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"type:text" json:"image_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Campaign) TableName() string {
	return "campaigns"
}

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Price           *float64 `json:"price"`
	Category        string   `json:"category"`
	GoogleDriveLink string   `json:"google_drive_link"`
	ImageURL        string   `json:"image_url"`
	OnSale          bool     `json:"on_sale"`
	CampaignID      *int64   `json:"campaign_id"`
}

// UpdateProductRequest 更新商品请求
// 指针字段为 nil 表示保持原值（部分更新语义）
type UpdateProductRequest struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	Category        *string  `json:"category,omitempty"`
	GoogleDriveLink *string  `json:"google_drive_link,omitempty"`
	ImageURL        *string  `json:"image_url,omitempty"`
	OnSale          *bool    `json:"on_sale,omitempty"`
	CampaignID      *int64   `json:"campaign_id,omitempty"`
}

// ProductFilter 商品列表过滤条件
type ProductFilter struct {
	Category string
	OnSale   *bool
}

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// UpdateCampaignRequest 更新活动请求
type UpdateCampaignRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}
