package dashboard

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/simp-lee/hrdesk/internal/crud"
	"github.com/simp-lee/hrdesk/internal/domain"
)

// entityLink is one navigation entry.
type entityLink struct {
	Name  string
	Title string
	URL   string
}

// entityCard is one overview tile.
type entityCard struct {
	entityLink
	Total int
	Error string
}

type filterView struct {
	Key     string
	Label   string
	Input   string
	Options []string
	Value   string
}

type rowView struct {
	ID     string
	Anchor string
	Cells  []string
	// Vals is the hx-vals payload that reopens the row in the edit form.
	Vals string
}

type listView struct {
	Entity       string
	Title        string
	Singular     string
	Columns      []domain.Column
	Rows         []rowView
	Filters      []filterView
	Applied      string
	Page         int
	TotalPages   int
	Total        int
	SelfURL      string
	PrevURL      string
	NextURL      string
	Failed       bool
	ErrorMessage string
}

type fieldView struct {
	Name     string
	Label    string
	Input    string
	Required bool
	Options  []string
	Value    string
	Checked  bool
	Current  string
	Error    string
}

type formView struct {
	Entity      string
	Title       string
	Action      string
	Method      string
	Multipart   bool
	Fields      []fieldView
	SubmitError string
	Seed        string
}

type confirmView struct {
	Entity   string
	Singular string
	ID       string
	Anchor   string
	Token    string
	Action   string
}

func newEntityLink(e domain.Entity) entityLink {
	return entityLink{Name: e.Name, Title: e.Title, URL: "/" + e.Name}
}

func newListView(e domain.Entity, st crud.ListState) listView {
	v := listView{
		Entity:       e.Name,
		Title:        e.Title,
		Singular:     e.Singular,
		Columns:      e.Columns,
		Filters:      filterViews(e, st.Filters),
		Applied:      encodeFilters(st.Filters),
		Page:         st.Page + 1,
		TotalPages:   st.TotalPages(),
		Total:        st.Total,
		Failed:       st.Status == crud.StatusFailed,
		ErrorMessage: st.ErrorMessage,
		SelfURL:      rowsURL(e.Name, st.Page, st.Filters),
	}
	if st.HasPrev() {
		v.PrevURL = rowsURL(e.Name, st.Page-1, st.Filters)
	}
	if st.HasNext() {
		v.NextURL = rowsURL(e.Name, st.Page+1, st.Filters)
	}

	v.Rows = make([]rowView, 0, len(st.Rows))
	for _, row := range st.Rows {
		id, _ := row.ID()
		cells := make([]string, 0, len(e.Columns))
		for _, col := range e.Columns {
			cells = append(cells, displayValue(e, col.Field, row[col.Field]))
		}
		v.Rows = append(v.Rows, rowView{
			ID:     id,
			Anchor: "row-" + id,
			Cells:  cells,
			Vals:   recordVals(row),
		})
	}
	return v
}

func filterViews(e domain.Entity, current map[string]string) []filterView {
	views := []filterView{{
		Key:   domain.KeywordFilter,
		Label: "Search",
		Input: "search",
		Value: current[domain.KeywordFilter],
	}}
	for _, f := range e.Fields {
		if !f.Filterable {
			continue
		}
		fv := filterView{Key: f.Name, Label: f.Label, Input: "text", Value: current[f.Name]}
		switch f.Type {
		case domain.FieldEnum:
			fv.Input = "select"
			fv.Options = f.Options
		case domain.FieldBool:
			fv.Input = "select"
			fv.Options = []string{"true", "false"}
		}
		views = append(views, fv)
	}
	return views
}

func newFormView(e domain.Entity, st crud.FormState, seed domain.Record) formView {
	v := formView{
		Entity:      e.Name,
		Action:      "/" + e.Name,
		Method:      "post",
		Multipart:   e.HasUploads(),
		SubmitError: st.SubmitError,
		Title:       "New " + e.Singular,
	}
	if st.Mode == domain.ModeUpdate {
		v.Action = "/" + e.Name + "/" + url.PathEscape(st.TargetID)
		v.Method = "put"
		v.Title = "Edit " + e.Singular
		v.Seed = recordJSON(seed)
	}

	for _, f := range e.Fields {
		fv := fieldView{
			Name:     f.Name,
			Label:    f.Label,
			Input:    inputType(f.Type),
			Required: f.Required,
			Options:  f.Options,
			Error:    st.FieldErrors[f.Name],
		}
		value := st.Values[f.Name]
		switch f.Type {
		case domain.FieldBool:
			fv.Checked = value == true
		case domain.FieldDate:
			fv.Value = crud.InputDate(value)
		case domain.FieldDateTime:
			fv.Value = crud.InputDateTime(value)
		case domain.FieldFile, domain.FieldImage:
			fv.Current = uploadName(value)
		default:
			fv.Value = plainValue(value)
		}
		v.Fields = append(v.Fields, fv)
	}
	return v
}

func inputType(t domain.FieldType) string {
	switch t {
	case domain.FieldText:
		return "textarea"
	case domain.FieldNumber:
		return "number"
	case domain.FieldBool:
		return "checkbox"
	case domain.FieldDate:
		return "date"
	case domain.FieldDateTime:
		return "datetime-local"
	case domain.FieldEnum:
		return "select"
	case domain.FieldFile, domain.FieldImage:
		return "file"
	default:
		return "text"
	}
}

// displayValue renders a cell. Values the list already replaced with the
// empty marker pass through unchanged.
func displayValue(e domain.Entity, field string, v any) string {
	if f, ok := e.Field(field); ok && f.Type == domain.FieldDateTime {
		if s, ok := v.(string); ok {
			if t, err := crud.ParseDateTime(s); err == nil {
				return t.UTC().Format("2006-01-02 15:04") + " UTC"
			}
		}
	}
	switch t := v.(type) {
	case nil:
		return domain.EmptyMarker
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case map[string]any:
		if name := uploadName(t); name != "" {
			return name
		}
		return domain.EmptyMarker
	default:
		return plainValue(t)
	}
}

func plainValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case time.Time:
		return t.Format(crud.DateLayout)
	default:
		return fmt.Sprint(t)
	}
}

func uploadName(v any) string {
	switch t := v.(type) {
	case map[string]any:
		name, _ := t["filename"].(string)
		return name
	case string:
		if t == domain.EmptyMarker {
			return ""
		}
		return t
	default:
		return ""
	}
}

func recordJSON(r domain.Record) string {
	if r == nil {
		return ""
	}
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(b)
}

func recordVals(r domain.Record) string {
	b, err := json.Marshal(map[string]string{"record": recordJSON(r)})
	if err != nil {
		return "{}"
	}
	return string(b)
}

// encodeFilters renders filters as a query string with sorted keys.
func encodeFilters(filters map[string]string) string {
	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	return q.Encode()
}

// rowsURL links the rows fragment of a zero-based page. The URL page is one-based.
func rowsURL(entity string, page int, filters map[string]string) string {
	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	q.Set("page", strconv.Itoa(page+1))
	return "/" + entity + "/rows?" + q.Encode()
}
