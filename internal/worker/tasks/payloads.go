package tasks

// Task Types
const (
	TypeUpsertProductVector = "vector:upsert_product"
	TypeDeleteProductVector = "vector:delete_product"
)

// UpsertProductVectorPayload 商品向量上送任务载荷
type UpsertProductVectorPayload struct {
	ProductID int64 `json:"product_id"`
}

// DeleteProductVectorPayload 商品向量删除任务载荷
type DeleteProductVectorPayload struct {
	ProductID int64 `json:"product_id"`
}
