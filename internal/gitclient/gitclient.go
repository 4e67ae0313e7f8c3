// Package gitclient reads files from a git repository without a local
// checkout. The repository is cloned into memory once; snapshot archives
// are small, so a full clone is cheaper than managing a workdir.
package gitclient

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Auth holds Basic Auth credentials.
// For Bitbucket Cloud access tokens, use "x-token-auth" as Username
// and the token as Password.
type Auth struct {
	Username string
	Password string // or Token
}

// Loader holds the cloned repository in memory.
type Loader struct {
	repo *git.Repository
}

// New clones the repository at url into memory. Pass nil auth for public
// repositories.
func New(url string, auth *Auth) (*Loader, error) {
	storer := memory.NewStorage()

	cloneOpts := &git.CloneOptions{
		URL:        url,
		NoCheckout: true, // We only need the object database, not a worktree.
		Progress:   nil,
		Depth:      0, // Full history, so any tag or branch can be read.
	}
	if auth != nil {
		cloneOpts.Auth = &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}
	}

	repo, err := git.Clone(storer, nil, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return &Loader{repo: repo}, nil
}

// DefaultBranch returns the short name of the branch that HEAD pointed at
// when the repository was cloned, or the commit hash for a detached HEAD.
func (l *Loader) DefaultBranch() (string, error) {
	ref, err := l.repo.Head()
	if err != nil {
		return "", fmt.Errorf("cannot resolve HEAD: %w", err)
	}
	if name := ref.Name(); name.IsBranch() {
		return name.Short(), nil
	}
	return ref.Hash().String(), nil
}

// ListReferences returns the short names of all branches and tags.
func (l *Loader) ListReferences() ([]string, error) {
	refMap := make(map[string]bool)

	refs, err := l.repo.References()
	if err != nil {
		return nil, err
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		if name.IsTag() || name.IsBranch() {
			refMap[name.Short()] = true
		} else if name.IsRemote() {
			// e.g. refs/remotes/origin/main -> Short() is "origin/main".
			// Strip the remote name.
			short := name.Short()
			if slashIdx := strings.Index(short, "/"); slashIdx != -1 {
				refMap[short[slashIdx+1:]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var references []string
	for v := range refMap {
		references = append(references, v)
	}
	return references, nil
}

func (l *Loader) resolveRevision(revision string) (*plumbing.Hash, error) {
	hash, err := l.repo.ResolveRevision(plumbing.Revision(revision))
	if err == nil {
		return hash, nil
	}

	// Try with origin/ prefix if not found (common for clones).
	if !strings.HasPrefix(revision, "refs/") {
		if hash, err := l.repo.ResolveRevision(plumbing.Revision("origin/" + revision)); err == nil {
			return hash, nil
		}
	}

	return nil, fmt.Errorf("revision not found: %w", err)
}

// ReadFile reads the blob at filePath as of the given revision (a tag,
// branch, or commit hash).
func (l *Loader) ReadFile(revision, filePath string) ([]byte, error) {
	hash, err := l.resolveRevision(revision)
	if err != nil {
		return nil, err
	}
	commit, err := l.repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	file, err := tree.File(filePath)
	if err != nil {
		return nil, err // object.ErrFileNotFound if missing
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// ListFilesRecursive lists all files under dirPath as of the given
// revision. Paths are relative to dirPath.
func (l *Loader) ListFilesRecursive(revision, dirPath string) ([]string, error) {
	hash, err := l.resolveRevision(revision)
	if err != nil {
		return nil, fmt.Errorf("revision resolution failed: %w", err)
	}
	commit, err := l.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit lookup failed: %w", err)
	}
	rootTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get root tree: %w", err)
	}

	var targetTree *object.Tree
	if dirPath == "" || dirPath == "." || dirPath == "/" {
		targetTree = rootTree
	} else {
		// Tree() errors if the path does not exist or is not a directory.
		targetTree, err = rootTree.Tree(dirPath)
		if err != nil {
			return nil, fmt.Errorf("directory %q not found or invalid: %w", dirPath, err)
		}
	}

	var filePaths []string
	filesIter := targetTree.Files()
	defer filesIter.Close()

	err = filesIter.ForEach(func(f *object.File) error {
		// f.Name is the path relative to targetTree.
		filePaths = append(filePaths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iteration failed: %w", err)
	}

	return filePaths, nil
}
