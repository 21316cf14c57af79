package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/simp-lee/hrdesk/internal/domain"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodePayload returns a JSON body, or multipart form data when the payload
// carries files.
func encodePayload(p domain.Payload) (io.Reader, string, error) {
	if !p.HasFiles() {
		fields := p.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		b, err := json.Marshal(fields)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range sortedKeys(p.Fields) {
		v := p.Fields[name]
		if v == nil {
			continue
		}
		s, err := formValue(v)
		if err != nil {
			return nil, "", fmt.Errorf("field %q: %w", name, err)
		}
		if err := w.WriteField(name, s); err != nil {
			return nil, "", err
		}
	}
	for _, name := range sortedKeys(p.Files) {
		f := p.Files[name]
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(name), quoteEscaper.Replace(f.Filename)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func formValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case json.Number:
		return t.String(), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
