package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JonMunkholm/CrewImport/internal/schema"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before the remainder spills to disk.
const multipartMemory = 1 << 20

var errNoFile = errors.New("no file uploaded")

// importForm is the non-file part of an upload.
type importForm struct {
	Type string `validate:"required,oneof=crew certificate"`
}

// upload is a received spreadsheet, already read back from its spool file.
type upload struct {
	Entity   schema.EntityType
	Filename string
	Data     []byte
}

// readUpload parses the multipart form, spools the file part to a uniquely
// named temp file and returns its contents. The spool file and any multipart
// temp files are removed before it returns, on every path.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	form := importForm{Type: r.FormValue("type")}
	if err := s.validate.Struct(form); err != nil {
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownEntity, form.Type)
	}
	entity, err := schema.Parse(form.Type)
	if err != nil {
		return nil, err
	}

	data, err := spool(s.cfg.Upload.TempDir, filepath.Ext(header.Filename), file)
	if err != nil {
		return nil, err
	}
	return &upload{Entity: entity, Filename: header.Filename, Data: data}, nil
}

// spool copies src into dir under a random name, reads it back and removes it.
func spool(dir, ext string, src io.Reader) ([]byte, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "upload-"+uuid.NewString()+ext)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer os.Remove(path)

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spool file: %w", err)
	}
	return data, nil
}
