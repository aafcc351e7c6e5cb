package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1,max=999"`
}

type updateItemRequest struct {
	Qty int `json:"qty" validate:"min=0,max=999"`
}
