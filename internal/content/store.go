// Package content is a filesystem document store. Folders are directories
// under the root; a document's id is its slash-separated path.
package content

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Document is a stored file.
type Document struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Folder   string `json:"folder" yaml:"folder"`
	Size     int64  `json:"size" yaml:"size"`
	MimeType string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
}

// Store keeps documents under a root directory.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore opens root, creating it if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating content root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's directory.
func (s *Store) Root() string { return s.root }

// clean validates an id and returns it in canonical form. "" is the root
// folder.
func clean(id string) (string, error) {
	id = strings.TrimSpace(strings.ReplaceAll(id, "\\", "/"))
	if id == "" || id == "/" {
		return "", nil
	}
	if strings.HasPrefix(id, "/") {
		return "", fmt.Errorf("invalid id %q: must be relative", id)
	}
	c := path.Clean(id)
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("invalid id %q: escapes the store", id)
	}
	if c == "." {
		return "", nil
	}
	return c, nil
}

func (s *Store) abs(id string) string {
	return filepath.Join(s.root, filepath.FromSlash(id))
}

// CreateFolder creates a folder (and its parents) and returns its id.
func (s *Store) CreateFolder(id string) (string, error) {
	c, err := clean(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.abs(c), 0o755); err != nil {
		return "", fmt.Errorf("creating folder %q: %w", c, err)
	}
	return c, nil
}

// FolderExists reports whether id names an existing folder.
func (s *Store) FolderExists(id string) bool {
	c, err := clean(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(s.abs(c))
	return err == nil && info.IsDir()
}

// Save writes r as name inside folder. The folder must exist. An existing
// document of the same name gets a numbered sibling instead of being
// replaced.
func (s *Store) Save(ctx context.Context, folder, name string, r io.Reader) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := clean(folder)
	if err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid document name %q", name)
	}
	if !s.FolderExists(f) {
		return nil, fmt.Errorf("folder %q does not exist", folder)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	final := uniqueName(s.abs(f), name)
	tmp, err := os.CreateTemp(s.abs(f), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing document: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.abs(f), final)); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("storing document: %w", err)
	}
	return newDocument(f, final, n), nil
}

func uniqueName(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}

func newDocument(folder, name string, size int64) *Document {
	return &Document{
		ID:       path.Join(folder, name),
		Name:     name,
		Folder:   folder,
		Size:     size,
		MimeType: mime.TypeByExtension(path.Ext(name)),
	}
}

// Stat returns a document's metadata.
func (s *Store) Stat(id string) (*Document, error) {
	c, err := clean(id)
	if err != nil {
		return nil, err
	}
	if c == "" {
		return nil, fmt.Errorf("document id is required")
	}
	info, err := os.Stat(s.abs(c))
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", id, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a folder", id)
	}
	dir := path.Dir(c)
	if dir == "." {
		dir = ""
	}
	return newDocument(dir, path.Base(c), info.Size()), nil
}

// Read returns a document's content and metadata.
func (s *Store) Read(id string) ([]byte, *Document, error) {
	doc, err := s.Stat(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(s.abs(doc.ID))
	if err != nil {
		return nil, nil, fmt.Errorf("reading document %q: %w", id, err)
	}
	return data, doc, nil
}
