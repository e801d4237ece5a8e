package sarif

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrepare_ParentFoldersAndFieldNames(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a/x.sarif.json", "b/c/y.sarif.json", "top.sarif")

	files := []MatchedFile{
		{Name: "x.sarif.json", Path: filepath.Join(root, "a", "x.sarif.json")},
		{Name: "y.sarif.json", Path: filepath.Join(root, "b", "c", "y.sarif.json")},
		{Name: "top.sarif", Path: filepath.Join(root, "top.sarif")},
	}

	payload, err := Prepare(files, root)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	parts := payload.Parts()
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}

	tests := []struct {
		index       int
		fileField   string
		folderField string
		folder      string
	}{
		{0, "file", "parentFolder", "a"},
		{1, "file1", "parentFolder1", filepath.Join("b", "c")},
		{2, "file2", "parentFolder2", ""},
	}

	for _, tt := range tests {
		p := parts[tt.index]
		if p.FileField != tt.fileField {
			t.Errorf("part %d FileField = %q, want %q", tt.index, p.FileField, tt.fileField)
		}
		if p.FolderField != tt.folderField {
			t.Errorf("part %d FolderField = %q, want %q", tt.index, p.FolderField, tt.folderField)
		}
		if p.ParentFolder != tt.folder {
			t.Errorf("part %d ParentFolder = %q, want %q", tt.index, p.ParentFolder, tt.folder)
		}
		if p.Size != int64(len(testSARIF)) {
			t.Errorf("part %d Size = %d, want %d", tt.index, p.Size, len(testSARIF))
		}
	}

	if payload.Len() != 3 {
		t.Errorf("Len() = %d, want 3", payload.Len())
	}
	if payload.Size() != int64(3*len(testSARIF)) {
		t.Errorf("Size() = %d, want %d", payload.Size(), 3*len(testSARIF))
	}
}

func TestPrepare_Errors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "present.sarif")

	t.Run("empty file list", func(t *testing.T) {
		_, err := Prepare(nil, root)
		if !errors.Is(err, ErrNoInput) {
			t.Errorf("expected ErrNoInput, got %v", err)
		}
	})

	t.Run("file removed after discovery", func(t *testing.T) {
		files := []MatchedFile{
			{Name: "present.sarif", Path: filepath.Join(root, "present.sarif")},
			{Name: "gone.sarif", Path: filepath.Join(root, "gone.sarif")},
		}
		_, err := Prepare(files, root)
		if !errors.Is(err, ErrFileRead) {
			t.Errorf("expected ErrFileRead, got %v", err)
		}
	})

	t.Run("directory instead of file", func(t *testing.T) {
		dir := filepath.Join(root, "dir.sarif")
		if err := os.MkdirAll(dir, 0750); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		_, err := Prepare([]MatchedFile{{Name: "dir.sarif", Path: dir}}, root)
		if !errors.Is(err, ErrFileRead) {
			t.Errorf("expected ErrFileRead, got %v", err)
		}
	})

	t.Run("file outside root", func(t *testing.T) {
		other := t.TempDir()
		writeTree(t, other, "elsewhere.sarif")
		_, err := Prepare([]MatchedFile{{Name: "elsewhere.sarif", Path: filepath.Join(other, "elsewhere.sarif")}}, root)
		if err == nil {
			t.Error("expected error for file outside root")
		}
	})
}

func TestParentFolder(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "work", "repo")

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"directly in root", filepath.Join(root, "x.sarif"), "", false},
		{"one level", filepath.Join(root, "a", "x.sarif"), "a", false},
		{"two levels", filepath.Join(root, "b", "c", "y.sarif"), filepath.Join("b", "c"), false},
		{"sibling of root", filepath.Join(root, "..", "other", "x.sarif"), "", true},
		{"root prefix but different dir", root + "-copy" + string(filepath.Separator) + "x.sarif", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParentFolder(root, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParentFolder(%q) expected error, got %q", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParentFolder(%q) unexpected error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("ParentFolder(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestFieldName(t *testing.T) {
	if got := FieldName(FileField, 0); got != "file" {
		t.Errorf("FieldName(file, 0) = %q", got)
	}
	if got := FieldName(FolderField, 1); got != "parentFolder1" {
		t.Errorf("FieldName(parentFolder, 1) = %q", got)
	}
	if got := FieldName(FileField, 12); got != "file12" {
		t.Errorf("FieldName(file, 12) = %q", got)
	}
}

// readForm parses a multipart body into field values and file contents.
func readForm(t *testing.T, body []byte, contentType string) (fields map[string]string, files map[string]string, filenames map[string]string) {
	t.Helper()
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("Failed to parse content type: %v", err)
	}

	fields = map[string]string{}
	files = map[string]string{}
	filenames = map[string]string{}

	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return fields, files, filenames
		}
		if err != nil {
			t.Fatalf("Failed to read part: %v", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("Failed to read part data: %v", err)
		}
		if part.FileName() != "" {
			files[part.FormName()] = string(data)
			filenames[part.FormName()] = part.FileName()
		} else {
			fields[part.FormName()] = string(data)
		}
	}
}

func TestPayload_WriteMultipart(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a/x.sarif.json", "b/c/y.sarif.json")

	files := []MatchedFile{
		{Name: "x.sarif.json", Path: filepath.Join(root, "a", "x.sarif.json")},
		{Name: "y.sarif.json", Path: filepath.Join(root, "b", "c", "y.sarif.json")},
	}

	var described []string
	payload, err := Prepare(files, root, WithProgress(func(r io.Reader, size int64, description string) io.Reader {
		described = append(described, description)
		return r
	}))
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := payload.WriteMultipart(mw); err != nil {
		t.Fatalf("WriteMultipart failed: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	fields, contents, names := readForm(t, buf.Bytes(), mw.FormDataContentType())

	if fields["parentFolder"] != "a" {
		t.Errorf("parentFolder = %q, want a", fields["parentFolder"])
	}
	if fields["parentFolder1"] != filepath.Join("b", "c") {
		t.Errorf("parentFolder1 = %q, want b/c", fields["parentFolder1"])
	}
	if contents["file"] != testSARIF || contents["file1"] != testSARIF {
		t.Errorf("unexpected file contents: %v", contents)
	}
	if names["file"] != "x.sarif.json" || names["file1"] != "y.sarif.json" {
		t.Errorf("unexpected file names: %v", names)
	}
	if len(described) != 2 || !strings.Contains(described[1], "y.sarif.json") {
		t.Errorf("progress wrapper not applied per file: %v", described)
	}
}

func TestPayload_WriteMultipartFileRemoved(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "x.sarif")
	path := filepath.Join(root, "x.sarif")

	payload, err := Prepare([]MatchedFile{{Name: "x.sarif", Path: path}}, root)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	mw := multipart.NewWriter(io.Discard)
	err = payload.WriteMultipart(mw)
	if !errors.Is(err, ErrFileRead) {
		t.Errorf("expected ErrFileRead, got %v", err)
	}
}
