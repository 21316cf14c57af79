package domain

import (
	"strings"
	"testing"
)

func TestEntityBuilder_Defaults(t *testing.T) {
	e, err := NewEntity("award-programs").
		Field(Field{Name: "name", Type: FieldString, Required: true}).
		Field(Field{Name: "startDate", Type: FieldDate}).
		Field(Field{Name: "notes", Type: FieldText}).
		Field(Field{Name: "badge", Type: FieldImage}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if e.Title != "Award programs" {
		t.Errorf("Title = %q", e.Title)
	}
	if e.Singular != "Award program" {
		t.Errorf("Singular = %q", e.Singular)
	}
	if e.CollectionKey != "awardPrograms" {
		t.Errorf("CollectionKey = %q", e.CollectionKey)
	}
	if e.PageSize != 10 {
		t.Errorf("PageSize = %d; want 10", e.PageSize)
	}
	if e.ListErrorMessage != "Failed to load award programs" {
		t.Errorf("ListErrorMessage = %q", e.ListErrorMessage)
	}
	if f, _ := e.Field("startDate"); f.Label != "Start date" {
		t.Errorf("startDate label = %q", f.Label)
	}
	// Text and upload fields are left out of default columns.
	if len(e.Columns) != 2 || e.Columns[0].Field != "name" || e.Columns[1].Field != "startDate" {
		t.Errorf("Columns = %+v", e.Columns)
	}
	if !e.HasUploads() {
		t.Error("HasUploads() should be true")
	}
}

func TestEntity_Validate(t *testing.T) {
	base := func() *EntityBuilder {
		return NewEntity("employees").Field(Field{Name: "name", Type: FieldString})
	}

	tests := []struct {
		name    string
		b       *EntityBuilder
		wantErr string
	}{
		{"valid", base(), ""},
		{"bad name", NewEntity("Employees!").Field(Field{Name: "name", Type: FieldString}), "invalid entity name"},
		{"page size zero", base().PageSize(0), "page size"},
		{"page size too large", base().PageSize(101), "page size"},
		{"no fields", NewEntity("roles"), "at least one field"},
		{"reserved id", base().Field(Field{Name: "id", Type: FieldString}), "reserved"},
		{"reserved keyword", base().Field(Field{Name: "keyword", Type: FieldString}), "reserved"},
		{"reserved page", base().Field(Field{Name: "page", Type: FieldString, Filterable: true}), "reserved"},
		{"reserved limit", base().Field(Field{Name: "limit", Type: FieldNumber}), "reserved"},
		{"reserved page_size", base().Field(Field{Name: "page_size", Type: FieldNumber}), "reserved"},
		{"reserved sort", base().Field(Field{Name: "sort", Type: FieldString, Filterable: true}), "reserved"},
		{"duplicate", base().Field(Field{Name: "name", Type: FieldString}), "duplicate"},
		{"enum without options", base().Field(Field{Name: "status", Type: FieldEnum}), "needs options"},
		{"unknown type", base().Field(Field{Name: "x", Type: "blob"}), "unknown type"},
		{"filterable upload", base().Field(Field{Name: "cv", Type: FieldFile, Filterable: true}), "cannot be filterable"},
		{"unknown column", base().Column("salary", ""), "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v; want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEntity_FilterKeys(t *testing.T) {
	e := NewEntity("leave-ledgers").
		Field(Field{Name: "employee", Type: FieldString}).
		Field(Field{Name: "status", Type: FieldEnum, Options: []string{"open", "closed"}, Filterable: true}).
		MustBuild()

	keys := e.FilterKeys()
	if len(keys) != 2 || keys[0] != KeywordFilter || keys[1] != "status" {
		t.Fatalf("FilterKeys() = %v", keys)
	}
}

func TestEntityBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustBuild should panic on invalid entity")
		}
	}()
	NewEntity("roles").MustBuild()
}
