package crud

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/simp-lee/hrdesk/internal/domain"
)

func employeeEntity() domain.Entity {
	return domain.NewEntity("employees").
		PageSize(3).
		Field(domain.Field{Name: "name", Type: domain.FieldString, Required: true, Rules: "max=20"}).
		Field(domain.Field{Name: "email", Type: domain.FieldString, Rules: "email"}).
		Field(domain.Field{Name: "status", Type: domain.FieldEnum, Options: []string{"active", "terminated"}, Filterable: true}).
		Field(domain.Field{Name: "hireDate", Type: domain.FieldDate}).
		Field(domain.Field{Name: "reviewAt", Type: domain.FieldDateTime}).
		Field(domain.Field{Name: "salary", Type: domain.FieldNumber, Rules: "gte=0"}).
		Field(domain.Field{Name: "active", Type: domain.FieldBool}).
		Field(domain.Field{Name: "description", Type: domain.FieldText}).
		Field(domain.Field{Name: "photo", Type: domain.FieldImage}).
		Column("name", "").
		Column("status", "").
		Column("description", "").
		MustBuild()
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// fakeBackend is an in-memory collection that records every call.
type fakeBackend struct {
	mu        sync.Mutex
	records   []domain.Record
	nextID    int
	listCalls []domain.ListQuery
	mutations []domain.MutationRequest
	removes   []string

	listErr   error
	mutateErr error
	removeErr error
}

func newFakeBackend(records ...domain.Record) *fakeBackend {
	return &fakeBackend{records: records, nextID: 100}
}

func (b *fakeBackend) List(_ context.Context, q domain.ListQuery) (domain.ListResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls = append(b.listCalls, q)
	if b.listErr != nil {
		return domain.ListResult{}, b.listErr
	}

	var matched []domain.Record
	for _, r := range b.records {
		if kw := q.Filters[domain.KeywordFilter]; kw != "" {
			name, _ := r["name"].(string)
			if !strings.Contains(strings.ToLower(name), strings.ToLower(kw)) {
				continue
			}
		}
		if st := q.Filters["status"]; st != "" && r["status"] != st {
			continue
		}
		matched = append(matched, r.Clone())
	}

	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return domain.ListResult{Rows: matched[start:end], Total: len(matched)}, nil
}

func (b *fakeBackend) Mutate(_ context.Context, r domain.MutationRequest) (domain.MutationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations = append(b.mutations, r)
	if b.mutateErr != nil {
		return domain.MutationResult{}, b.mutateErr
	}

	if r.Mode == domain.ModeCreate {
		b.nextID++
		rec := domain.Record{"id": float64(b.nextID)}
		for k, v := range r.Payload.Fields {
			rec[k] = v
		}
		b.records = append(b.records, rec)
		return domain.MutationResult{Success: true, Message: "Employee created", Record: rec.Clone()}, nil
	}

	for _, rec := range b.records {
		if id, _ := rec.ID(); id == r.TargetID {
			for k, v := range r.Payload.Fields {
				rec[k] = v
			}
			return domain.MutationResult{Success: true, Message: "Employee updated", Record: rec.Clone()}, nil
		}
	}
	return domain.MutationResult{}, &domain.MutationError{Message: "not found", Status: 404}
}

func (b *fakeBackend) Remove(_ context.Context, id string) (domain.MutationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removes = append(b.removes, id)
	if b.removeErr != nil {
		return domain.MutationResult{}, b.removeErr
	}
	for i, rec := range b.records {
		if rid, _ := rec.ID(); rid == id {
			b.records = append(b.records[:i], b.records[i+1:]...)
			return domain.MutationResult{Success: true, Message: "Employee deleted"}, nil
		}
	}
	return domain.MutationResult{}, &domain.MutationError{Message: "not found", Status: 404}
}

func (b *fakeBackend) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listCalls)
}

func (b *fakeBackend) lastList() domain.ListQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls[len(b.listCalls)-1]
}

func (b *fakeBackend) mutationCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mutations)
}

func seedEmployees(n int) []domain.Record {
	out := make([]domain.Record, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Record{
			"id":          float64(i),
			"name":        "employee-" + strconv.Itoa(i),
			"status":      "active",
			"description": "staff",
		})
	}
	return out
}

func rowIDs(rows []domain.Record) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		id, _ := r.ID()
		ids = append(ids, id)
	}
	return ids
}
