package pkg

import (
	"encoding/json"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/hrdesk/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = domain.MaxPageSize
	defaultSort     = "id:desc"

	// likeEscape is the LIKE escape character; it behaves the same on
	// sqlite, postgres and mysql.
	likeEscape = "!"
)

// reservedParams lists query parameter names used for paging, sorting and
// search, not for field filters.
var reservedParams = map[string]bool{
	"page":      true,
	"limit":     true,
	"page_size": true,
	"sort":      true,
	"keyword":   true,
}

// validFieldName matches only alphanumeric characters and underscores.
var validFieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// ParsePageRequest extracts paging, search and filter parameters from the
// query string. Page is 1-based; the page size is read from "limit" and
// falls back to "page_size".
func ParsePageRequest(c *gin.Context) domain.PageRequest {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if page < 1 {
		page = defaultPage
	}

	sizeParam := c.Query("limit")
	if sizeParam == "" {
		sizeParam = c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize))
	}
	pageSize, _ := strconv.Atoi(sizeParam)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] {
			continue
		}
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			filter[key] = strings.TrimSpace(values[0])
		}
	}

	return domain.PageRequest{
		Page:     page,
		PageSize: pageSize,
		Sort:     c.DefaultQuery("sort", defaultSort),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Filter:   filter,
	}
}

// Paginate returns a GORM scope that applies LIMIT and OFFSET based on the page request.
func Paginate(req domain.PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		offset := (req.Page - 1) * req.PageSize
		return db.Offset(offset).Limit(req.PageSize)
	}
}

// Sort returns a GORM scope that applies ORDER BY based on the page request.
// Only field names present in the allowed list are accepted; others are silently ignored.
// Field names are validated against a strict pattern to prevent SQL injection.
func Sort(req domain.PageRequest, allowed []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		field, direction, ok := strings.Cut(req.Sort, ":")
		if !ok {
			return db
		}
		field = strings.TrimSpace(field)
		direction = strings.TrimSpace(strings.ToLower(direction))

		if direction != "asc" && direction != "desc" {
			return db
		}
		if !validFieldName.MatchString(field) || !isAllowed(field, allowed) {
			return db
		}
		return db.Order(field + " " + direction)
	}
}

// Search returns a GORM scope matching the request keyword, case-insensitively,
// anywhere in column. The column holds lowercased text.
func Search(req domain.PageRequest, column string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if req.Keyword == "" || !validFieldName.MatchString(column) {
			return db
		}
		pattern := "%" + likeEscaper.Replace(strings.ToLower(req.Keyword)) + "%"
		return db.Where(column+" LIKE ? ESCAPE '"+likeEscape+"'", pattern)
	}
}

// DocumentFilter returns a GORM scope applying exact-match filters against
// a column of canonical JSON objects (as produced by encoding/json, which
// sorts keys and adds no whitespace). A filter matches either the quoted
// string value or the bare literal, so "true" matches both "true" and true.
// Keys that are not valid field names are ignored.
func DocumentFilter(req domain.PageRequest, column string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !validFieldName.MatchString(column) {
			return db
		}
		keys := make([]string, 0, len(req.Filter))
		for key := range req.Filter {
			keys = append(keys, key)
		}
		slices.Sort(keys)

		like := column + " LIKE ? ESCAPE '" + likeEscape + "'"
		clause := "(" + like + " OR " + like + " OR " + like + ")"
		for _, key := range keys {
			if !validFieldName.MatchString(key) {
				continue
			}
			patterns := DocumentPatterns(key, req.Filter[key])
			db = db.Where(clause, patterns[0], patterns[1], patterns[2])
		}
		return db
	}
}

// DocumentPatterns returns the LIKE patterns matching key:value inside a
// canonical JSON object: as a JSON string, then as a bare literal followed
// by either of the two delimiters that can end it.
func DocumentPatterns(key, value string) [3]string {
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	prefix := "%" + likeEscaper.Replace(string(k)) + ":"
	literal := prefix + likeEscaper.Replace(value)
	return [3]string{
		prefix + likeEscaper.Replace(string(v)) + "%",
		literal + ",%",
		literal + "}%",
	}
}

// NewPageResult creates a PageResult with computed TotalPages.
func NewPageResult[T any](items []T, total int64, req domain.PageRequest) *domain.PageResult[T] {
	totalPages := 0
	if req.PageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	}

	if items == nil {
		items = []T{}
	}

	return &domain.PageResult[T]{
		Items:      items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}
}

// isAllowed checks if a field name is in the allowed list.
func isAllowed(field string, allowed []string) bool {
	return slices.Contains(allowed, field)
}
