package records

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
	"github.com/simp-lee/hrdesk/internal/pkg"
	"github.com/simp-lee/hrdesk/internal/session"
)

// EntityLookup resolves the entity named by a request path.
type EntityLookup interface {
	Lookup(name string) (domain.Entity, error)
}

// RecordHandler serves the REST collection contract for every catalog entity.
type RecordHandler struct {
	svc       domain.RecordService
	entities  EntityLookup
	maxUpload int64
}

// NewRecordHandler creates a RecordHandler. Uploaded files are read up to
// one byte past maxUpload so the service can reject oversize ones.
func NewRecordHandler(svc domain.RecordService, entities EntityLookup, maxUpload int64) *RecordHandler {
	if maxUpload <= 0 {
		maxUpload = crud.DefaultMaxUploadSize
	}
	return &RecordHandler{svc: svc, entities: entities, maxUpload: maxUpload}
}

// List handles GET /api/:entity/list.
func (h *RecordHandler) List(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}

	req := pkg.ParsePageRequest(c)
	result, err := h.svc.List(c.Request.Context(), entity, req)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Collection(c, entity.CollectionKey, result.Items, result.Total)
}

// Create handles POST /api/:entity/create.
func (h *RecordHandler) Create(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	payload, ok := h.payload(c)
	if !ok {
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), entity, actor(c, payload), payload)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Message(c, http.StatusCreated, entity.Singular+" created", rec)
}

// Update handles PUT /api/:entity/update/:id.
func (h *RecordHandler) Update(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}
	payload, ok := h.payload(c)
	if !ok {
		return
	}

	rec, err := h.svc.Update(c.Request.Context(), entity, id, actor(c, payload), payload)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Message(c, http.StatusOK, entity.Singular+" updated", rec)
}

// Delete handles DELETE /api/:entity/delete/:id.
func (h *RecordHandler) Delete(c *gin.Context) {
	entity, ok := h.entity(c)
	if !ok {
		return
	}
	id, err := parseID(c)
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, err.Error(), nil))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), entity, id); err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.Message(c, http.StatusOK, entity.Singular+" deleted", nil)
}

func (h *RecordHandler) entity(c *gin.Context) (domain.Entity, bool) {
	e, err := h.entities.Lookup(c.Param("entity"))
	if err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeNotFound, "unknown entity", err))
		return domain.Entity{}, false
	}
	return e, true
}

// payload decodes a JSON object or a multipart form into field values and
// files. Coercion and validation are left to the service.
func (h *RecordHandler) payload(c *gin.Context) (domain.Payload, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		p, err := h.multipartPayload(c)
		if err != nil {
			pkg.Error(c, domain.NewAppError(domain.CodeValidation, "invalid multipart body", err))
			return domain.Payload{}, false
		}
		return p, true
	}

	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "invalid JSON body", err))
		return domain.Payload{}, false
	}
	return domain.Payload{Fields: fields}, true
}

func (h *RecordHandler) multipartPayload(c *gin.Context) (domain.Payload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return domain.Payload{}, err
	}

	p := domain.Payload{Fields: make(map[string]any, len(form.Value))}
	for key, values := range form.Value {
		if len(values) > 0 {
			p.Fields[key] = values[0]
		}
	}
	for key, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		file, err := h.readFile(headers[0])
		if err != nil {
			return domain.Payload{}, fmt.Errorf("read %s: %w", key, err)
		}
		if p.Files == nil {
			p.Files = make(map[string]domain.FileUpload)
		}
		p.Files[key] = file
	}
	return p, nil
}

func (h *RecordHandler) readFile(fh *multipart.FileHeader) (domain.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.FileUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return domain.FileUpload{}, err
	}
	return domain.FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// actor returns the operator to attribute a mutation to: the request session,
// or the attribution field carried in the payload when there is none.
func actor(c *gin.Context, p domain.Payload) string {
	if s, ok := session.FromContext(c.Request.Context()); ok {
		return s.UserID
	}
	for _, key := range []string{domain.FieldUpdatedBy, domain.FieldCreatedBy} {
		if v, ok := p.Fields[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseID extracts and validates the :id path parameter.
func parseID(c *gin.Context) (uint, error) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
