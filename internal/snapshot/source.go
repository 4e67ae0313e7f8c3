package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/jhaugan/catsync/internal/gitclient"
)

var (
	ErrReadOnly  = errors.New("snapshot source is read-only")
	ErrNoSuchRef = errors.New("no such ref")
)

// Source is the abstraction over snapshot archive locations, in
// particular a local directory and a revision of a git repo (read-only).
type Source interface {
	// ListFiles lists all files in the archive (recursively).
	// The resulting paths are relative to the archive root, so they can
	// be passed to ReadFile unmodified.
	ListFiles() ([]string, error)
	// ReadFile reads the contents of path from the archive.
	ReadFile(path string) ([]byte, error)
	// WriteFile writes the given contents to path in the archive.
	// Sources that do not support writing return ErrReadOnly.
	WriteFile(path string, contents []byte) error
}

// DirSource reads and writes snapshot files in a local directory.
type DirSource struct {
	rootDir string
}

var _ Source = (*DirSource)(nil)

func NewDirSource(rootDir string) *DirSource {
	return &DirSource{rootDir: rootDir}
}

func (d *DirSource) ListFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.rootDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(d.rootDir, path)
		if err != nil {
			return err
		}
		files = append(files, relPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// resolveRelPath joins subpath onto root and rejects paths that would
// escape the root directory.
func resolveRelPath(root, subpath string) (string, error) {
	fullPath := filepath.Join(root, subpath)

	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return "", fmt.Errorf("not a relative path: %v", err) // e.g. paths on different volumes
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes the snapshot directory", subpath)
	}
	return fullPath, nil
}

func (d *DirSource) ReadFile(path string) ([]byte, error) {
	fullPath, err := resolveRelPath(d.rootDir, path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

func (d *DirSource) WriteFile(path string, contents []byte) error {
	fullPath, err := resolveRelPath(d.rootDir, path)
	if err != nil {
		return err
	}
	return os.WriteFile(fullPath, contents, 0644)
}

// GitSource reads snapshot files from one revision of a git repository.
// Teams that commit their snapshot archive can reconcile against any
// committed state without a local copy.
type GitSource struct {
	loader *gitclient.Loader
	ref    string
}

var _ Source = (*GitSource)(nil)

// NewGitSource returns a source reading from ref in the repository behind
// loader. An empty ref selects the repository's default branch; a ref
// that is neither a branch nor a tag fails with ErrNoSuchRef.
func NewGitSource(loader *gitclient.Loader, ref string) (*GitSource, error) {
	if ref == "" {
		branch, err := loader.DefaultBranch()
		if err != nil {
			return nil, err
		}
		ref = branch
	} else {
		refs, err := loader.ListReferences()
		if err != nil {
			return nil, fmt.Errorf("cannot list references: %v", err)
		}
		if !slices.Contains(refs, ref) {
			return nil, fmt.Errorf("%q: %w", ref, ErrNoSuchRef)
		}
	}
	return &GitSource{loader: loader, ref: ref}, nil
}

// Ref returns the revision this source reads from.
func (g *GitSource) Ref() string { return g.ref }

func (g *GitSource) ListFiles() ([]string, error) {
	return g.loader.ListFilesRecursive(g.ref, "")
}

func (g *GitSource) ReadFile(path string) ([]byte, error) {
	bs, err := g.loader.ReadFile(g.ref, path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s at %s: %w", path, g.ref, fs.ErrNotExist)
		}
		return nil, err
	}
	return bs, nil
}

func (g *GitSource) WriteFile(path string, contents []byte) error {
	return ErrReadOnly
}
