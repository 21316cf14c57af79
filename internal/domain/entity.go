package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// FieldType controls how a form value is coerced and sent on the wire.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldBool     FieldType = "bool"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "datetime"
	FieldEnum     FieldType = "enum"
	FieldFile     FieldType = "file"
	FieldImage    FieldType = "image"
)

// IsUpload reports whether values of this type travel as multipart files.
func (t FieldType) IsUpload() bool {
	return t == FieldFile || t == FieldImage
}

// Field describes one editable attribute of an entity.
type Field struct {
	Name     string
	Label    string
	Type     FieldType
	Required bool
	// Rules holds extra go-playground/validator tags applied to the
	// normalized value, e.g. "email" or "max=100".
	Rules      string
	Options    []string
	Filterable bool
	// Ref names the entity whose record ids this field holds. Records that
	// are referenced this way cannot be deleted.
	Ref string
}

// Column maps a record field to a grid column.
type Column struct {
	Field string
	Title string
}

// Entity is the per-page configuration of the list and form controllers.
type Entity struct {
	// Name is the REST path segment, e.g. "employees".
	Name string
	// Title is the plural display name.
	Title string
	// Singular is used in toast messages.
	Singular string
	// CollectionKey is the key holding the rows inside the list response's data object.
	CollectionKey string
	PageSize      int
	Fields        []Field
	Columns       []Column
	// ListErrorMessage is the fixed phrase shown when the list fails to load.
	ListErrorMessage string
}

// KeywordFilter is the free-text search filter key.
const KeywordFilter = "keyword"

// reservedFieldNames are taken by the record id and the list query string.
var reservedFieldNames = map[string]bool{
	"id":          true,
	KeywordFilter: true,
	"page":        true,
	"limit":       true,
	"page_size":   true,
	"sort":        true,
}

// MaxPageSize bounds Entity.PageSize.
const MaxPageSize = 100

var entityNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Field returns the field definition by name.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FilterKeys returns the accepted filter keys: the keyword plus every
// filterable field.
func (e Entity) FilterKeys() []string {
	keys := []string{KeywordFilter}
	for _, f := range e.Fields {
		if f.Filterable {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// HasUploads reports whether any field is a file or image.
func (e Entity) HasUploads() bool {
	for _, f := range e.Fields {
		if f.Type.IsUpload() {
			return true
		}
	}
	return false
}

// Validate checks the entity definition for consistency.
func (e Entity) Validate() error {
	if !entityNamePattern.MatchString(e.Name) {
		return fmt.Errorf("invalid entity name %q: must match %s", e.Name, entityNamePattern)
	}
	if strings.TrimSpace(e.CollectionKey) == "" {
		return fmt.Errorf("entity %q: collection key is required", e.Name)
	}
	if e.PageSize < 1 || e.PageSize > MaxPageSize {
		return fmt.Errorf("entity %q: page size %d must be between 1 and %d", e.Name, e.PageSize, MaxPageSize)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %q: at least one field is required", e.Name)
	}

	seen := make(map[string]struct{}, len(e.Fields))
	for i, f := range e.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("entity %q: field %d has no name", e.Name, i)
		}
		if reservedFieldNames[name] {
			return fmt.Errorf("entity %q: field name %q is reserved", e.Name, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("entity %q: duplicate field %q", e.Name, name)
		}
		seen[name] = struct{}{}

		switch f.Type {
		case FieldString, FieldText, FieldNumber, FieldBool, FieldDate, FieldDateTime, FieldFile, FieldImage:
		case FieldEnum:
			if len(f.Options) == 0 {
				return fmt.Errorf("entity %q: enum field %q needs options", e.Name, name)
			}
		default:
			return fmt.Errorf("entity %q: field %q has unknown type %q", e.Name, name, f.Type)
		}
		if f.Filterable && f.Type.IsUpload() {
			return fmt.Errorf("entity %q: upload field %q cannot be filterable", e.Name, name)
		}
	}

	for _, c := range e.Columns {
		if c.Field == "id" {
			continue
		}
		if _, ok := seen[c.Field]; !ok {
			return fmt.Errorf("entity %q: column references unknown field %q", e.Name, c.Field)
		}
	}
	return nil
}

// EntityBuilder assembles an Entity. Defaults and validation are applied by Build.
type EntityBuilder struct {
	e Entity
}

// NewEntity starts a builder for the entity served at /api/{name}.
func NewEntity(name string) *EntityBuilder {
	return &EntityBuilder{e: Entity{Name: name, PageSize: 10}}
}

func (b *EntityBuilder) Title(title string) *EntityBuilder {
	b.e.Title = title
	return b
}

func (b *EntityBuilder) Singular(singular string) *EntityBuilder {
	b.e.Singular = singular
	return b
}

func (b *EntityBuilder) CollectionKey(key string) *EntityBuilder {
	b.e.CollectionKey = key
	return b
}

func (b *EntityBuilder) PageSize(n int) *EntityBuilder {
	b.e.PageSize = n
	return b
}

func (b *EntityBuilder) ListError(msg string) *EntityBuilder {
	b.e.ListErrorMessage = msg
	return b
}

// Field appends a field definition.
func (b *EntityBuilder) Field(f Field) *EntityBuilder {
	if f.Label == "" {
		f.Label = humanize(f.Name)
	}
	b.e.Fields = append(b.e.Fields, f)
	return b
}

// Column appends a grid column. An empty title is derived from the field name.
func (b *EntityBuilder) Column(field, title string) *EntityBuilder {
	if title == "" {
		title = humanize(field)
	}
	b.e.Columns = append(b.e.Columns, Column{Field: field, Title: title})
	return b
}

// Build applies defaults and validates the entity.
func (b *EntityBuilder) Build() (Entity, error) {
	e := b.e
	if e.Title == "" {
		e.Title = humanize(e.Name)
	}
	if e.Singular == "" {
		e.Singular = strings.TrimSuffix(e.Title, "s")
	}
	if e.CollectionKey == "" {
		e.CollectionKey = camelCase(e.Name)
	}
	if e.ListErrorMessage == "" {
		e.ListErrorMessage = "Failed to load " + strings.ToLower(e.Title)
	}
	if len(e.Columns) == 0 {
		for _, f := range e.Fields {
			if f.Type.IsUpload() || f.Type == FieldText {
				continue
			}
			e.Columns = append(e.Columns, Column{Field: f.Name, Title: f.Label})
		}
	}
	if err := e.Validate(); err != nil {
		return Entity{}, err
	}
	return e, nil
}

// MustBuild is like Build but panics on error. Intended for static catalogs.
func (b *EntityBuilder) MustBuild() Entity {
	e, err := b.Build()
	if err != nil {
		panic("domain.EntityBuilder: " + err.Error())
	}
	return e
}

// ErrUnknownEntity is returned by catalog lookups.
var ErrUnknownEntity = errors.New("unknown entity")

// camelCase turns "award-programs" into "awardPrograms".
func camelCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	for i := 1; i < len(parts); i++ {
		parts[i] = upperFirst(parts[i])
	}
	return strings.Join(parts, "")
}

// humanize turns "startDate" or "award-programs" into "Start date" / "Award programs".
func humanize(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == '_':
			b.WriteRune(' ')
		case unicode.IsUpper(r) && i > 0:
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return upperFirst(b.String())
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
