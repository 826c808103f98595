// Package store persists rendered posts. The pipeline only depends on the
// Store interface; FileStore writes into a Jekyll _posts directory.
package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrExists is returned by WriteAtomic when the target already exists.
	ErrExists = errors.New("post already exists")
	// ErrInvalidName rejects names that would leave the store directory.
	ErrInvalidName = errors.New("invalid post name")
)

// Store is the content store the publisher writes to.
type Store interface {
	Exists(name string) (bool, error)
	// ReadHeader returns the article_id marker of an existing post, or ""
	// when the post carries none.
	ReadHeader(name string) (string, error)
	// WriteAtomic creates name with data. It never replaces an existing post.
	WriteAtomic(name string, data []byte) error
	List() ([]string, error)
}

// FileStore keeps posts as files in one directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file path for name.
func (s *FileStore) Path(name string) string { return filepath.Join(s.dir, name) }

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FileStore) Exists(name string) (bool, error) {
	p, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
}

func (s *FileStore) ReadHeader(name string) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	return ParseMarker(f)
}

// WriteAtomic writes data to a temp file, syncs it, and hard-links it into
// place. The link fails if name appeared in the meantime, so a concurrent
// writer can never be overwritten.
func (s *FileStore) WriteAtomic(name string, data []byte) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("link %s: %w", name, err)
	}
	return nil
}

// List returns the markdown posts in the store, sorted by name.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

const frontMatterDelim = "---"

var markerPattern = regexp.MustCompile(`(?m)^article_id:\s*["']?([^"'\r\n]+?)["']?\s*$`)

// ParseMarker reads the article_id from a post's YAML front matter. Posts
// whose front matter does not parse as YAML fall back to a line match.
func ParseMarker(r io.Reader) (string, error) {
	header, err := readFrontMatter(r)
	if err != nil {
		return "", err
	}
	if header == nil {
		return "", nil
	}

	var fm struct {
		ArticleID any `yaml:"article_id"`
	}
	if err := yaml.Unmarshal(header, &fm); err == nil {
		if fm.ArticleID == nil {
			return "", nil
		}
		return strings.TrimSpace(fmt.Sprint(fm.ArticleID)), nil
	}

	if m := markerPattern.FindSubmatch(header); m != nil {
		return strings.TrimSpace(string(m[1])), nil
	}
	return "", nil
}

// readFrontMatter returns the lines between the leading "---" delimiters,
// or nil when the post has no front matter.
func readFrontMatter(r io.Reader) ([]byte, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return nil, sc.Err()
	}
	if strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff")) != frontMatterDelim {
		return nil, nil
	}

	var buf bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == frontMatterDelim {
			return buf.Bytes(), nil
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read front matter: %w", err)
	}
	// Unterminated front matter is still searched for a marker.
	return buf.Bytes(), nil
}
