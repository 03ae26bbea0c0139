package uploads

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func multipartForm(t *testing.T, files map[string][]string) *multipart.Form {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, names := range files {
		for _, name := range names {
			part, err := writer.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("create part: %v", err)
			}
			part.Write([]byte("content of " + name))
		}
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parse form: %v", err)
	}
	return req.MultipartForm
}

func TestSaveFormAndDelete(t *testing.T) {
	root := t.TempDir()
	s := NewStorage(root, "http://api.test/")

	form := multipartForm(t, map[string][]string{
		FieldSingle:   {"facture.pdf"},
		FieldMultiple: {"photo.PNG", "liste.csv"},
	})
	urls, err := s.SaveForm(form, "devis")
	if err != nil {
		t.Fatalf("SaveForm: %v", err)
	}
	if len(urls) != 3 {
		t.Fatalf("expected 3 urls, got %v", urls)
	}
	for _, url := range urls {
		if !strings.HasPrefix(url, "http://api.test/uploads/devis/") {
			t.Fatalf("unexpected url %q", url)
		}
	}

	name := strings.TrimPrefix(urls[0], "http://api.test/uploads/devis/")
	if _, err := os.Stat(filepath.Join(root, "devis", name)); err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if err := s.Delete(urls[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "devis", name)); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err=%v", err)
	}
}

func TestSaveFormRejectsUnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	s := NewStorage(root, "http://api.test")

	form := multipartForm(t, map[string][]string{
		FieldMultiple: {"ok.pdf", "script.exe"},
	})
	if _, err := s.SaveForm(form, "devis"); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	entries, _ := os.ReadDir(filepath.Join(root, "devis"))
	if len(entries) != 0 {
		t.Fatalf("partial uploads must be cleaned up, found %d files", len(entries))
	}
}

func TestDeleteRefusesEscapes(t *testing.T) {
	s := NewStorage(t.TempDir(), "http://api.test")
	for _, url := range []string{"/etc/passwd", "uploads/../../etc/passwd", "http://api.test/uploads/"} {
		if err := s.Delete(url); err == nil {
			t.Fatalf("expected refusal for %q", url)
		}
	}
}
