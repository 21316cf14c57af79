package domain

import "time"

// BaseModel is the common base struct for all domain models.
// It replaces gorm.Model to avoid the implicit soft delete behavior of DeletedAt.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRequest holds pagination and filtering parameters parsed from an
// inbound list request. Page is 1-based.
type PageRequest struct {
	Page     int
	PageSize int
	// Sort is "field:asc" or "field:desc".
	Sort     string
	Keyword  string
	Filter   map[string]string
}

// PageResult is one page of items plus the total across all pages.
type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}
