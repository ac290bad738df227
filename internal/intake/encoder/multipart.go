package encoder

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// WriteMultipart writes the payload as multipart/form-data: the JSON record under
// "data" followed by one file part per attachment. It returns the Content-Type
// header value including the boundary.
func (p *Payload) WriteMultipart(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)

	data, err := json.Marshal(p.Data)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	if err := mw.WriteField(DataField, string(data)); err != nil {
		return "", fmt.Errorf("write %s field: %w", DataField, err)
	}

	for _, a := range p.Attachments {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(a.Name), quoteEscaper.Replace(a.FileName)))
		h.Set("Content-Type", a.ContentType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return "", fmt.Errorf("create part %s: %w", a.Name, err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return "", fmt.Errorf("write part %s: %w", a.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}
	return mw.FormDataContentType(), nil
}
