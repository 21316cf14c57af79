package records

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/simp-lee/hrdesk/internal/catalog"
	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
	"github.com/simp-lee/hrdesk/internal/middleware"
	"github.com/simp-lee/hrdesk/internal/remote"
)

// TestControllersAgainstBackend drives the list, form and delete gate
// through the remote client against a live records server.
func TestControllersAgainstBackend(t *testing.T) {
	srv := httptest.NewServer(setupAPIRouter(t, middleware.Actor(nil)))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	sess := domain.Session{UserID: "u-1", UserName: "Operator"}

	deptClient, err := remote.New(srv.URL, catalog.Departments(), remote.WithSession(sess))
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	roleClient, err := remote.New(srv.URL, catalog.Roles(), remote.WithSession(sess))
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}

	toasts := &crud.Recorder{}
	list := crud.NewListController(catalog.Departments(), deptClient)
	form := crud.NewFormController(catalog.Departments(), deptClient,
		crud.WithSession(sess),
		crud.WithNotifier(toasts),
		crud.WithOnSuccess(list.Refresh),
	)

	list.Mount(ctx)
	if st := list.State(); st.Status != crud.StatusLoaded || st.Total != 0 {
		t.Fatalf("initial state = %+v", st)
	}

	if err := form.Open(domain.ModeCreate, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	res, err := form.Submit(ctx, crud.Submission{Values: map[string]string{"name": "Engineering", "code": "ENG", "active": "on"}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Message != "Department created" {
		t.Errorf("message = %q", res.Message)
	}
	if res.Record[domain.FieldCreatedBy] != "u-1" {
		t.Errorf("createdBy = %v", res.Record[domain.FieldCreatedBy])
	}

	st := list.State()
	if st.Total != 1 || len(st.Rows) != 1 {
		t.Fatalf("list after create = %+v", st)
	}
	if st.Rows[0]["description"] != domain.EmptyMarker {
		t.Errorf("blank column = %v; want empty marker", st.Rows[0]["description"])
	}
	deptID, _ := st.Rows[0].ID()

	// A role pointing at the department blocks its deletion.
	if _, err := roleClient.Create(ctx, domain.Payload{Fields: map[string]any{"title": "Engineer", "department": deptID}}); err != nil {
		t.Fatalf("create role: %v", err)
	}

	gate := crud.NewDeleteGate(catalog.Departments(), deptClient,
		crud.WithNotifier(toasts),
		crud.WithOnSuccess(list.Refresh),
	)
	if err := gate.Request(st.Rows[0], "row-"+deptID); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := gate.Confirm(ctx); !domain.IsMutationError(err) {
		t.Fatalf("Confirm: expected mutation error, got %v", err)
	}

	last, _ := toasts.Last()
	want := crud.Toast{Kind: crud.ToastError, Message: "cannot delete: referenced by 1 roles"}
	if last != want {
		t.Errorf("toast = %+v; want %+v", last, want)
	}
	if got := list.State(); got.Total != 1 || len(got.Rows) != 1 {
		t.Errorf("row should stay after a rejected delete, state = %+v", got)
	}

	// Keyword search flows through the same query parameters.
	if err := list.SetFilter(ctx, domain.KeywordFilter, "engin"); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if got := list.State(); got.Total != 1 {
		t.Errorf("keyword search total = %d; want 1", got.Total)
	}
	if err := list.SetFilter(ctx, domain.KeywordFilter, "finance"); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if got := list.State(); got.Total != 0 || got.Status != crud.StatusLoaded {
		t.Errorf("no-match search = %+v", got)
	}
}
