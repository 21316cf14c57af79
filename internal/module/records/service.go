package records

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
)

// ReferenceLookup reports which fields of other entities hold ids of an entity.
type ReferenceLookup interface {
	ReferrersOf(entity string) []domain.Reference
}

// recordService implements domain.RecordService.
type recordService struct {
	repo      domain.RecordRepository
	refs      ReferenceLookup
	validator *crud.Validator
	newKey    func() string
}

// NewRecordService creates a RecordService. Incoming payloads are checked
// against the entity schema by v, the same way the dashboard form does.
func NewRecordService(repo domain.RecordRepository, refs ReferenceLookup, v *crud.Validator) domain.RecordService {
	if v == nil {
		v = crud.NewValidator()
	}
	return &recordService{
		repo:      repo,
		refs:      refs,
		validator: v,
		newKey:    func() string { return uuid.NewString() },
	}
}

func (s *recordService) Create(ctx context.Context, entity domain.Entity, actor string, payload domain.Payload) (domain.Record, error) {
	p, err := s.validator.Normalize(entity, domain.ModeCreate, submission(payload), nil)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(p.Fields)+len(p.Files))
	for k, v := range p.Fields {
		data[k] = v
	}
	s.attachFiles(data, p.Files)

	rec := &domain.StoredRecord{
		Entity:    entity.Name,
		CreatedBy: actor,
		UpdatedBy: actor,
	}
	if err := encode(rec, data); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return toRecord(rec)
}

func (s *recordService) List(ctx context.Context, entity domain.Entity, req domain.PageRequest) (*domain.PageResult[domain.Record], error) {
	filters := make(map[string]string, len(req.Filter))
	for key, value := range req.Filter {
		if f, ok := entity.Field(key); ok && f.Filterable {
			filters[key] = value
		}
	}
	req.Filter = filters

	page, err := s.repo.List(ctx, entity.Name, req)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Record, 0, len(page.Items))
	for i := range page.Items {
		r, err := toRecord(&page.Items[i])
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return &domain.PageResult[domain.Record]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, nil
}

// Update replaces every schema field of the record. Upload fields without a
// new file keep their stored value.
func (s *recordService) Update(ctx context.Context, entity domain.Entity, id uint, actor string, payload domain.Payload) (domain.Record, error) {
	rec, err := s.repo.GetByID(ctx, entity.Name, id)
	if err != nil {
		return nil, err
	}
	current, err := toRecord(rec)
	if err != nil {
		return nil, err
	}

	p, err := s.validator.Normalize(entity, domain.ModeUpdate, submission(payload), current)
	if err != nil {
		return nil, err
	}

	data, err := decode(rec.Data)
	if err != nil {
		return nil, err
	}
	for k, v := range p.Fields {
		data[k] = v
	}
	s.attachFiles(data, p.Files)

	rec.UpdatedBy = actor
	if err := encode(rec, data); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return toRecord(rec)
}

func (s *recordService) Delete(ctx context.Context, entity domain.Entity, id uint) error {
	var refs []domain.Reference
	if s.refs != nil {
		refs = s.refs.ReferrersOf(entity.Name)
	}
	return s.repo.Delete(ctx, entity.Name, id, refs)
}

// attachFiles stores upload metadata under each field. File contents are not
// persisted.
func (s *recordService) attachFiles(data map[string]any, files map[string]domain.FileUpload) {
	for name, f := range files {
		data[name] = map[string]any{
			"key":         s.newKey(),
			"filename":    f.Filename,
			"contentType": f.ContentType,
			"size":        f.Size(),
		}
	}
}

// submission turns decoded request values back into form input so they go
// through the same coercion as a dashboard submit.
func submission(p domain.Payload) crud.Submission {
	values := make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		values[k] = formValue(v)
	}
	return crud.Submission{Values: values, Files: p.Files}
}

func formValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// encode writes data and its search text into rec.
func encode(rec *domain.StoredRecord, data map[string]any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return domain.NewAppError(domain.CodeInternal, "encode record", err)
	}
	rec.Data = string(b)
	rec.SearchText = searchText(data)
	return nil
}

func decode(raw string) (map[string]any, error) {
	data := make(map[string]any)
	if strings.TrimSpace(raw) == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "decode record", err)
	}
	return data, nil
}

// searchText joins the lowercased string values of data in key order.
// Upload fields contribute their file name.
func searchText(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			if v != "" {
				parts = append(parts, strings.ToLower(v))
			}
		case map[string]any:
			if name, ok := v["filename"].(string); ok && name != "" {
				parts = append(parts, strings.ToLower(name))
			}
		}
	}
	return strings.Join(parts, " ")
}

// toRecord assembles the wire record: the stored fields plus id, timestamps
// and attribution.
func toRecord(rec *domain.StoredRecord) (domain.Record, error) {
	data, err := decode(rec.Data)
	if err != nil {
		return nil, err
	}
	out := domain.Record(data)
	out["id"] = rec.ID
	out["createdAt"] = rec.CreatedAt.UTC().Format(time.RFC3339)
	out["updatedAt"] = rec.UpdatedAt.UTC().Format(time.RFC3339)
	if rec.CreatedBy != "" {
		out[domain.FieldCreatedBy] = rec.CreatedBy
	}
	if rec.UpdatedBy != "" {
		out[domain.FieldUpdatedBy] = rec.UpdatedBy
	}
	return out, nil
}
