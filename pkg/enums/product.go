package enums

import "fmt"

// ProductGender is the audience a product is designed for.
type ProductGender string

const (
	ProductGenderMale   ProductGender = "male"
	ProductGenderFemale ProductGender = "female"
	ProductGenderUnisex ProductGender = "unisex"
)

var validProductGenders = []ProductGender{
	ProductGenderMale,
	ProductGenderFemale,
	ProductGenderUnisex,
}

// String implements fmt.Stringer.
func (g ProductGender) String() string {
	return string(g)
}

// IsValid reports whether the value is a known ProductGender.
func (g ProductGender) IsValid() bool {
	for _, candidate := range validProductGenders {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseProductGender converts raw input into a ProductGender.
func ParseProductGender(value string) (ProductGender, error) {
	for _, candidate := range validProductGenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product gender %q", value)
}

// ProductStatus tracks the sellable state of a product.
type ProductStatus string

const (
	ProductStatusAvailable  ProductStatus = "available"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
	ProductStatusArchived   ProductStatus = "archived"
)

var validProductStatuses = []ProductStatus{
	ProductStatusAvailable,
	ProductStatusOutOfStock,
	ProductStatusArchived,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}
