package catalog

import (
	"errors"
	"testing"

	"github.com/simp-lee/hrdesk/internal/domain"
)

func TestDefault_RegistersHREntities(t *testing.T) {
	c := Default()

	want := []string{
		"departments", "roles", "employees", "documents",
		"award-programs", "leave-ledgers", "board-meetings", "compliance-records",
	}
	all := c.All()
	if len(all) != len(want) {
		t.Fatalf("All() returned %d entities; want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("All()[%d] = %q; want %q", i, all[i].Name, name)
		}
		if all[i].PageSize < 3 || all[i].PageSize > 100 {
			t.Errorf("%s page size %d outside observed range", name, all[i].PageSize)
		}
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	e, err := c.Lookup("award-programs")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if e.CollectionKey != "awardPrograms" {
		t.Errorf("CollectionKey = %q", e.CollectionKey)
	}

	_, err = c.Lookup("payroll")
	if !errors.Is(err, domain.ErrUnknownEntity) {
		t.Fatalf("Lookup unknown: err = %v; want ErrUnknownEntity", err)
	}
}

func TestReferrersOf(t *testing.T) {
	refs := Default().ReferrersOf("departments")
	if len(refs) != 2 {
		t.Fatalf("ReferrersOf(departments) = %+v; want 2 referrers", refs)
	}
	got := map[string]string{}
	for _, r := range refs {
		got[r.Entity] = r.Field
	}
	if got["roles"] != "department" || got["employees"] != "department" {
		t.Errorf("unexpected referrers: %+v", refs)
	}
}

func TestNew_Errors(t *testing.T) {
	dept := Departments()
	if _, err := New(dept, dept); err == nil {
		t.Error("expected duplicate entity error")
	}

	orphan := domain.NewEntity("badges").
		Field(domain.Field{Name: "holder", Type: domain.FieldString, Ref: "employees"}).
		MustBuild()
	if _, err := New(orphan); err == nil {
		t.Error("expected unknown reference error")
	}
}

func TestNames_Sorted(t *testing.T) {
	names := Default().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Names() not sorted: %v", names)
		}
	}
}
