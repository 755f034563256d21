package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	productsvc "github.com/angelmondragon/marketplace-backend/internal/products"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const maxSearchLength = 200

// ProductsQuery handles the filtered, paginated catalog listing.
func ProductsQuery(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := parseProductQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Query(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func parseProductQuery(r *http.Request) (productsvc.QueryInput, error) {
	var input productsvc.QueryInput
	invalid := func(field, msg string) error {
		return pkgerrors.New(pkgerrors.CodeInvalidQuery, msg).WithDetails(map[string]any{"field": field})
	}

	if raw := validators.OptionalQueryString(r, "gender"); raw != nil {
		gender := enums.ProductGender(strings.ToLower(*raw))
		input.Filter.Gender = &gender
	}
	if raw := validators.OptionalQueryString(r, "status"); raw != nil {
		status := enums.ProductStatus(strings.ToLower(*raw))
		input.Filter.Status = &status
	}
	for _, bound := range []struct {
		key  string
		dest **int64
	}{
		{"minPrice", &input.Filter.MinPriceCents},
		{"maxPrice", &input.Filter.MaxPriceCents},
	} {
		raw := validators.OptionalQueryString(r, bound.key)
		if raw == nil {
			continue
		}
		cents, err := productsvc.ParsePrice(*raw)
		if err != nil {
			return input, invalid(bound.key, bound.key+" must be a decimal amount with at most two decimals")
		}
		*bound.dest = &cents
	}
	if raw := validators.OptionalQueryString(r, "creatorId"); raw != nil {
		creatorID, err := uuid.Parse(*raw)
		if err != nil {
			return input, invalid("creatorId", "creatorId must be a uuid")
		}
		input.Filter.CreatorID = &creatorID
	}
	if raw := validators.OptionalQueryString(r, "search"); raw != nil {
		input.Filter.SearchText = validators.SanitizeString(*raw, maxSearchLength)
	}

	page, err := validators.OptionalQueryInt(r, pkgerrors.CodeInvalidQuery, "page")
	if err != nil {
		return input, err
	}
	size, err := validators.OptionalQueryInt(r, pkgerrors.CodeInvalidQuery, "pageSize", "limit")
	if err != nil {
		return input, err
	}
	input.Page, input.PageSize = page, size
	return input, nil
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// ProductsRecent and ProductsBestSelling share the limit-only list shape.
func ProductsRecent(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return productList(svc.Recent, logg)
}

func ProductsBestSelling(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return productList(svc.BestSelling, logg)
}

func productList(fn func(context.Context, int) ([]productsvc.ProductDTO, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := fn(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// ProductsSearch is the free-text lookup behind the storefront search box.
func ProductsSearch(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		text := validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength)

		items, err := svc.Search(r.Context(), text, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func CreatorProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := uuid.Parse(chi.URLParam(r, "creatorId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid creator id"))
			return
		}

		items, err := svc.ListByCreator(r.Context(), creatorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// ProductCreate stores a product owned by the authenticated user.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), creatorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type createProductRequest struct {
	Name        string                 `json:"name" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=5000"`
	Gender      string                 `json:"gender" validate:"required,oneof=male female unisex"`
	Tags        []string               `json:"tags" validate:"omitempty,dive,required,max=50"`
	Variants    []createVariantRequest `json:"variants" validate:"required,min=1,dive"`
}

type createVariantRequest struct {
	Size   *string  `json:"size,omitempty" validate:"omitempty,max=50"`
	Color  *string  `json:"color,omitempty" validate:"omitempty,max=50"`
	Stock  int      `json:"stock" validate:"min=0"`
	Price  string   `json:"price" validate:"required"`
	Images []string `json:"images" validate:"omitempty,dive,required,url"`
}

func (r createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	input := productsvc.CreateProductInput{
		Name:        r.Name,
		Description: r.Description,
		Gender:      enums.ProductGender(r.Gender),
		Tags:        r.Tags,
		Variants:    make([]productsvc.VariantInput, 0, len(r.Variants)),
	}
	for i, v := range r.Variants {
		cents, err := productsvc.ParsePrice(strings.TrimSpace(v.Price))
		if err != nil {
			return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price").
				WithDetails(map[string]any{"field": "variants[" + strconv.Itoa(i) + "].price"})
		}
		input.Variants = append(input.Variants, productsvc.VariantInput{
			Size:       v.Size,
			Color:      v.Color,
			Stock:      v.Stock,
			PriceCents: cents,
			Images:     v.Images,
		})
	}
	return input, nil
}

type updateStockRequest struct {
	Stock *int `json:"stock" validate:"required,min=0"`
}

func ProductUpdateVariantStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := uuid.Parse(chi.URLParam(r, "variantId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeVariantNotFound, "variant not found"))
			return
		}

		var payload updateStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateVariantStock(r.Context(), creatorID, productID, variantID, *payload.Stock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func ProductArchive(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedProductAction(svc.ArchiveProduct, logg)
}

func ProductRestore(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedProductAction(svc.RestoreProduct, logg)
}

func ownedProductAction(fn func(ctx context.Context, creatorID, productID uuid.UUID) (*productsvc.ProductDTO, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := fn(r.Context(), creatorID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), creatorID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"deleted": true, "id": productID})
	}
}

// A malformed id cannot name an existing product.
func productIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
	}
	return id, nil
}

func creatorFromContext(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
