// Package uploads stores multipart attachments on local disk.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/logging"
)

// MaxFileSize is the per-file upload limit.
const MaxFileSize = 10 << 20

// Form field names accepted for attachments.
const (
	FieldSingle   = "fichier"
	FieldMultiple = "fichiers"
)

var ErrTooLarge = errors.New("fichier trop volumineux (max 10MB)")

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".doc":  {},
	".docx": {},
	".xls":  {},
	".xlsx": {},
	".csv":  {},
	".txt":  {},
}

// Storage writes files under Root/<dir> and exposes them as
// BaseURL/uploads/<dir>/<name>.
type Storage struct {
	Root    string
	BaseURL string
	log     zerolog.Logger
}

func NewStorage(root, baseURL string) *Storage {
	return &Storage{
		Root:    filepath.Clean(root),
		BaseURL: strings.TrimRight(baseURL, "/"),
		log:     logging.New("uploads"),
	}
}

// Save validates and writes one file, returning its public URL.
func (s *Storage) Save(file *multipart.FileHeader, dir string) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("extension de fichier requise")
	}
	if _, ok := allowedExtensions[extension]; !ok {
		return "", fmt.Errorf("type de fichier non supporté: %s", extension)
	}
	if file.Size > MaxFileSize {
		return "", ErrTooLarge
	}

	dir = path.Clean("/" + dir)[1:]
	filename := primitive.NewObjectID().Hex() + extension
	target := filepath.Join(s.Root, filepath.FromSlash(dir))
	if err := os.MkdirAll(target, 0o755); err != nil {
		s.log.Error().Err(err).Str("dir", target).Msg("create directory failed")
		return "", err
	}

	fullPath := filepath.Join(target, filename)
	out, err := os.Create(fullPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", fullPath).Msg("create file failed")
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		s.log.Error().Err(err).Str("path", fullPath).Msg("write file failed")
		os.Remove(fullPath)
		return "", err
	}

	s.log.Debug().Str("path", fullPath).Msg("file saved")
	return s.BaseURL + "/" + path.Join("uploads", dir, filename), nil
}

// SaveForm stores the "fichier" and "fichiers" parts of form. On failure the
// files already written are removed.
func (s *Storage) SaveForm(form *multipart.Form, dir string) ([]string, error) {
	if form == nil {
		return nil, nil
	}
	headers := append([]*multipart.FileHeader{}, form.File[FieldSingle]...)
	headers = append(headers, form.File[FieldMultiple]...)

	urls := make([]string, 0, len(headers))
	for _, fh := range headers {
		url, err := s.Save(fh, dir)
		if err != nil {
			s.DeleteAll(urls)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Delete removes a file previously returned by Save. URLs pointing outside
// the upload root are refused.
func (s *Storage) Delete(url string) error {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil
	}
	trimmed = strings.TrimPrefix(trimmed, s.BaseURL)

	cleanRel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(trimmed, "/")), "/")
	if !strings.HasPrefix(cleanRel, "uploads/") {
		return fmt.Errorf("refusing to delete non-upload path: %s", url)
	}
	cleanRel = strings.TrimPrefix(cleanRel, "uploads/")

	target := filepath.Clean(filepath.Join(s.Root, filepath.FromSlash(cleanRel)))
	if target == s.Root || !strings.HasPrefix(target, s.Root+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside upload root: %s", url)
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteAll removes urls, logging failures.
func (s *Storage) DeleteAll(urls []string) {
	for _, url := range urls {
		if err := s.Delete(url); err != nil {
			s.log.Warn().Err(err).Str("url", url).Msg("delete failed")
		}
	}
}
