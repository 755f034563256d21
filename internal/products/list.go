package product

import (
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
)

// Filter holds the conjunctive catalog filters. Nil fields are not applied.
type Filter struct {
	Gender        *enums.ProductGender
	MinPriceCents *int64
	MaxPriceCents *int64
	CreatorID     *uuid.UUID
	SearchText    string
	Status        *enums.ProductStatus
}

// QueryInput is a catalog query before defaults are applied.
type QueryInput struct {
	Filter   Filter
	Page     *int
	PageSize *int
}

// QueryResult is one page of products plus totals for the whole match set.
type QueryResult struct {
	Items      []ProductDTO `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}

// PageRows is what the repository hands back for a paginated read.
type PageRows struct {
	Products []models.Product
	Total    int64
}
