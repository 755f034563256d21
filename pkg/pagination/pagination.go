package pagination

import "math"

const (
	// DefaultPage is the page number used when none is provided.
	DefaultPage = 1
	// DefaultPageSize is the standard page size when a size is not provided.
	DefaultPageSize = 12
	// MaxPageSize caps how many rows any page query can request.
	MaxPageSize = 100
)

// Page is a validated 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Resolve applies defaults to optional page inputs. It does not validate;
// callers reject values below 1 or above their maximum before resolving.
func Resolve(page, size *int, defaultSize int) Page {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	p := Page{Number: DefaultPage, Size: defaultSize}
	if page != nil {
		p.Number = *page
	}
	if size != nil {
		p.Size = *size
	}
	return p
}

// Offset returns the number of rows preceding the page. It saturates at
// math.MaxInt instead of wrapping, so a huge page number reads as past the end.
func (p Page) Offset() int {
	if p.Number <= 1 || p.Size <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// TotalPages returns ceil(total/size), zero when there are no rows.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// NormalizeLimit clamps a free-form limit (recent/best-selling lists).
func NormalizeLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
