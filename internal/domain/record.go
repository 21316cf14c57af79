package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EmptyMarker is shown in place of a missing or blank column value.
const EmptyMarker = "—"

// Record is one entity instance: an opaque field map with a required "id".
type Record map[string]any

// ID returns the record's id as a string. Numeric ids are rendered without
// a fractional part when they are integral. ok is false when the id is
// missing, null, blank, or of an unsupported type.
func (r Record) ID() (id string, ok bool) {
	raw, exists := r["id"]
	if !exists || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case json.Number:
		s := v.String()
		return s, s != ""
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return Record{"id": float64(v)}.ID()
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	default:
		return "", false
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ListQuery requests one page of a filtered collection. Page is 0-based.
type ListQuery struct {
	Page     int
	PageSize int
	Filters  map[string]string
}

// Offset is the index of the first requested row.
func (q ListQuery) Offset() int {
	return q.Page * q.PageSize
}

// Validate checks the page bounds.
func (q ListQuery) Validate() error {
	if q.Page < 0 {
		return fmt.Errorf("invalid page %d: must be >= 0", q.Page)
	}
	if q.PageSize < 1 {
		return fmt.Errorf("invalid page size %d: must be >= 1", q.PageSize)
	}
	return nil
}

// ListResult is one page of rows and the total across all pages for the
// query's filters.
type ListResult struct {
	Rows  []Record
	Total int
}

// MutationMode selects between creating and updating a record.
type MutationMode int

const (
	ModeCreate MutationMode = iota
	ModeUpdate
)

func (m MutationMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// FileUpload is a file field value.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the upload size in bytes.
func (f FileUpload) Size() int64 {
	return int64(len(f.Data))
}

// Payload is the normalized body of a create or update. A payload with any
// files is sent as multipart form data.
type Payload struct {
	Fields map[string]any
	Files  map[string]FileUpload
}

// HasFiles reports whether the payload must be sent as multipart.
func (p Payload) HasFiles() bool {
	return len(p.Files) > 0
}

// MutationRequest describes one create or update.
type MutationRequest struct {
	Mode     MutationMode
	TargetID string
	Payload  Payload
}

// Validate enforces that TargetID is present exactly when Mode is ModeUpdate.
func (r MutationRequest) Validate() error {
	switch r.Mode {
	case ModeCreate:
		if r.TargetID != "" {
			return errors.New("create request must not carry a target id")
		}
	case ModeUpdate:
		if strings.TrimSpace(r.TargetID) == "" {
			return errors.New("update request requires a target id")
		}
	default:
		return fmt.Errorf("unknown mutation mode %d", r.Mode)
	}
	return nil
}

// MutationResult is the outcome of a create, update or delete. Record is
// set only when Success is true and the server echoed one back.
type MutationResult struct {
	Success bool
	Message string
	Record  Record
}
