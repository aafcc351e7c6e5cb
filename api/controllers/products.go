package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmoreira/storefront-backend/api/responses"
	"github.com/dmoreira/storefront-backend/api/validators"
	"github.com/dmoreira/storefront-backend/pkg/db/models"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/logger"
)

const (
	productListDefaultLimit = 20
	productListMaxLimit     = 100
)

type productCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context, limit, offset int) ([]models.Product, error)
}

type productView struct {
	ID          uuid.UUID           `json:"id"`
	SKU         string              `json:"sku"`
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   *decimal.Decimal    `json:"sale_price,omitempty"`
	InStock     bool                `json:"in_stock"`
	Categories  []productCategoryView `json:"categories,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type productCategoryView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

func newProductView(p *models.Product) productView {
	view := productView{
		ID:          p.ID,
		SKU:         p.SKU,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		InStock:     !p.TracksStock() || *p.Stock > 0,
		CreatedAt:   p.CreatedAt,
	}
	if p.SalePrice.Valid {
		sale := p.SalePrice.Decimal
		view.SalePrice = &sale
	}
	for _, category := range p.Categories {
		view.Categories = append(view.Categories, productCategoryView{
			ID:   category.ID,
			Name: category.Name,
			Slug: category.Slug,
		})
	}
	return view
}

// ProductList returns the active catalog page for the storefront grid.
func ProductList(catalog productCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product catalog unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", productListDefaultLimit, 1, productListMaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := catalog.ListActive(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]productView, 0, len(items))
		for i := range items {
			views = append(views, newProductView(&items[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

// ProductDetail returns one active listing.
func ProductDetail(catalog productCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product catalog unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "productId"))
		productID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		product, err := catalog.GetByID(r.Context(), productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !product.IsActive {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}

		responses.WriteSuccess(w, newProductView(product))
	}
}
