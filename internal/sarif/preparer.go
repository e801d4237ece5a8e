package sarif

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Base multipart field names. Parts after the first carry their index as a
// suffix: file, parentFolder, file1, parentFolder1, ...
const (
	FileField   = "file"
	FolderField = "parentFolder"
)

// ErrFileRead is returned when a matched file cannot be opened or read.
var ErrFileRead = errors.New("cannot read SARIF file")

// UploadPart describes one file of the upload payload.
type UploadPart struct {
	FileField    string `json:"file_field"`
	FolderField  string `json:"folder_field"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	ParentFolder string `json:"parent_folder"`
	Size         int64  `json:"size"`
}

// ProgressFunc decorates a file reader while it is uploaded.
type ProgressFunc func(r io.Reader, size int64, description string) io.Reader

// Payload is the prepared multipart body. File contents are opened only while
// WriteMultipart runs, one file at a time.
type Payload struct {
	parts    []UploadPart
	progress ProgressFunc
}

// PrepareOption customizes a Payload.
type PrepareOption func(*Payload)

// WithProgress wraps each file reader with fn during upload.
func WithProgress(fn ProgressFunc) PrepareOption {
	return func(p *Payload) {
		p.progress = fn
	}
}

// Prepare builds one UploadPart per file. Parent folders are computed relative
// to root. Every file is checked to exist and be a regular file.
func Prepare(files []MatchedFile, root string, opts ...PrepareOption) (*Payload, error) {
	if len(files) == 0 {
		return nil, ErrNoInput
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	p := &Payload{parts: make([]UploadPart, 0, len(files))}
	for _, opt := range opts {
		opt(p)
	}

	for i, f := range files {
		folder, err := ParentFolder(absRoot, f.Path)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(f.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFileRead, f.Path, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s: not a regular file", ErrFileRead, f.Path)
		}

		p.parts = append(p.parts, UploadPart{
			FileField:    FieldName(FileField, i),
			FolderField:  FieldName(FolderField, i),
			Name:         f.Name,
			Path:         f.Path,
			ParentFolder: folder,
			Size:         info.Size(),
		})
	}

	return p, nil
}

// FieldName returns the multipart field name for the part at index.
func FieldName(base string, index int) string {
	if index == 0 {
		return base
	}
	return base + strconv.Itoa(index)
}

// ParentFolder returns the path from root to the directory containing path,
// joined with the platform separator. Files directly in root yield "".
func ParentFolder(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file %s is outside root %s", absPath, absRoot)
	}

	segments := strings.Split(rel, string(filepath.Separator))
	if len(segments) < 2 {
		return "", nil
	}
	return strings.Join(segments[:len(segments)-1], string(filepath.Separator)), nil
}

// Parts returns a copy of the prepared parts.
func (p *Payload) Parts() []UploadPart {
	out := make([]UploadPart, len(p.parts))
	copy(out, p.parts)
	return out
}

// Len returns the number of files in the payload.
func (p *Payload) Len() int {
	return len(p.parts)
}

// Size returns the total size of the file contents in bytes.
func (p *Payload) Size() int64 {
	var total int64
	for _, part := range p.parts {
		total += part.Size
	}
	return total
}

// WriteMultipart streams every part into mw. Each file is opened, copied and
// closed before the next one is touched. It does not close mw.
func (p *Payload) WriteMultipart(mw *multipart.Writer) error {
	for _, part := range p.parts {
		if err := p.writeFile(mw, part); err != nil {
			return err
		}
		if err := mw.WriteField(part.FolderField, part.ParentFolder); err != nil {
			return fmt.Errorf("failed to write %s field: %w", part.FolderField, err)
		}
	}
	return nil
}

func (p *Payload) writeFile(mw *multipart.Writer, part UploadPart) error {
	f, err := os.Open(part.Path) // #nosec G304 - path comes from discovery under the root
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFileRead, part.Path, err)
	}
	defer f.Close() //nolint:errcheck // file opened for reading

	w, err := mw.CreateFormFile(part.FileField, part.Name)
	if err != nil {
		return fmt.Errorf("failed to create form file %s: %w", part.FileField, err)
	}

	var r io.Reader = &fileReader{f: f, path: part.Path}
	if p.progress != nil {
		r = p.progress(r, part.Size, "Uploading "+part.Name)
	}

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to stream %s: %w", part.Name, err)
	}
	return nil
}

// fileReader tags read failures with ErrFileRead so they stay distinct from
// failures of the transport consuming the body.
type fileReader struct {
	f    *os.File
	path string
}

func (r *fileReader) Read(b []byte) (int, error) {
	n, err := r.f.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %s: %v", ErrFileRead, r.path, err)
	}
	return n, err
}
