package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"senfret/internal/apperr"
	"senfret/internal/uploads"
)

const maxMemory = 32 << 20

// formValues reads request fields from a multipart, urlencoded or JSON body
// through one accessor set. Files are only available for multipart bodies.
type formValues struct {
	values map[string]string
	files  *multipart.Form
}

func readForm(c *gin.Context) (*formValues, error) {
	f := &formValues{values: map[string]string{}}

	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, gin.MIMEMultipartPOSTForm):
		if err := c.Request.ParseMultipartForm(maxMemory); err != nil {
			return nil, apperr.Invalid("Formulaire invalide")
		}
		f.files = c.Request.MultipartForm
		for key, vs := range c.Request.MultipartForm.Value {
			if len(vs) > 0 {
				// last value wins
				f.values[key] = vs[len(vs)-1]
			}
		}
	case strings.HasPrefix(contentType, gin.MIMEPOSTForm):
		if err := c.Request.ParseForm(); err != nil {
			return nil, apperr.Invalid("Formulaire invalide")
		}
		for key, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				f.values[key] = vs[len(vs)-1]
			}
		}
	default:
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			return f, nil
		}
		var raw map[string]interface{}
		decoder := json.NewDecoder(c.Request.Body)
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return f, nil
			}
			return nil, apperr.Invalid("Corps de requête invalide")
		}
		for key, v := range raw {
			switch typed := v.(type) {
			case nil:
			case string:
				f.values[key] = typed
			case json.Number:
				f.values[key] = typed.String()
			case bool:
				f.values[key] = strconv.FormatBool(typed)
			default:
				f.values[key] = fmt.Sprint(typed)
			}
		}
	}
	return f, nil
}

func (f *formValues) get(key string) (string, bool) {
	v, ok := f.values[key]
	return strings.TrimSpace(v), ok
}

// text returns the trimmed value of key, or "".
func (f *formValues) text(key string) string {
	v, _ := f.get(key)
	return v
}

// optionalText returns nil when key is missing or blank.
func (f *formValues) optionalText(key string) *string {
	v, ok := f.get(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func (f *formValues) float(key string) (*float64, error) {
	v, ok := f.get(key)
	if !ok || v == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, apperr.Invalid(key + " doit être un nombre")
	}
	return &parsed, nil
}

func (f *formValues) int(key string) (*int, error) {
	v, ok := f.get(key)
	if !ok || v == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return nil, apperr.Invalid(key + " doit être un entier")
	}
	return &parsed, nil
}

func (f *formValues) bool(key string) (*bool, error) {
	v, ok := f.get(key)
	if !ok || v == "" {
		return nil, nil
	}
	parsed, err := parseBoolValue(v)
	if err != nil {
		return nil, apperr.Invalid(key + " doit être un booléen")
	}
	return &parsed, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func (f *formValues) time(key string) (*time.Time, error) {
	v, ok := f.get(key)
	if !ok || v == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, v); err == nil {
			return &parsed, nil
		}
	}
	return nil, apperr.Invalid(key + " doit être une date valide")
}

// saveFiles stores the attachments of a multipart body under dir.
func (f *formValues) saveFiles(storage *uploads.Storage, dir string) ([]string, error) {
	if f.files == nil {
		return nil, nil
	}
	urls, err := storage.SaveForm(f.files, dir)
	if err != nil {
		if errors.Is(err, uploads.ErrTooLarge) {
			return nil, apperr.Invalid(err.Error())
		}
		return nil, apperr.Invalid("Échec du téléversement: " + err.Error())
	}
	return urls, nil
}

func (f *formValues) fileCount() int {
	if f.files == nil {
		return 0
	}
	return len(f.files.File[uploads.FieldSingle]) + len(f.files.File[uploads.FieldMultiple])
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "on", "oui":
		return true, nil
	case "off", "non":
		return false, nil
	}
	return strconv.ParseBool(value)
}

func respondFormError(c *gin.Context, route string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		respondError(c, route, err)
		return
	}
	respondWithError(c, http.StatusBadRequest, route, apperr.Message(err))
}
