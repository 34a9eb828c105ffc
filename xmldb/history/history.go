// Package history records every change of a workspace as a git commit,
// using go-git (pure Go, no git binary dependency).
//
// A Repo implements xmldb.Committer.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit is one entry of a file's history.
type Commit struct {
	Hash    string
	Message string
	Author  string
	When    time.Time
}

// Repo is a git repository rooted at a workspace directory.
type Repo struct {
	dir   string
	name  string
	email string

	mu   sync.Mutex
	repo *gogit.Repository
}

// Open opens the repository at dir, initializing it if needed.
func Open(dir, name, email string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return &Repo{dir: abs, name: name, email: email, repo: repo}, nil
}

// Dir returns the repository root.
func (r *Repo) Dir() string {
	return r.dir
}

// Commit stages paths, absolute or relative to the current directory, and
// commits them. Deleted files are staged as removals. Nothing is
// committed when nothing is staged.
func (r *Repo) Commit(msg string, paths ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, p := range paths {
		rel, err := r.rel(p)
		if err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(r.dir, rel)); errors.Is(err, os.ErrNotExist) {
			if _, err := w.Remove(filepath.ToSlash(rel)); err != nil {
				return fmt.Errorf("failed to stage removal of %s: %w", rel, err)
			}
			continue
		}
		if _, err := w.Add(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("failed to stage %s: %w", rel, err)
		}
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if !hasStaged(status) {
		return nil
	}
	sig := &object.Signature{Name: r.name, Email: r.email, When: time.Now()}
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Log returns up to n commits touching path, newest first. An empty path
// lists the whole repository. n <= 0 means 1000.
func (r *Repo) Log(path string, n int) ([]*Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	opts := &gogit.LogOptions{}
	if path != "" {
		rel, err := r.rel(path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		opts.FileName = &rel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	iter, err := r.repo.Log(opts)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []*Commit
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
	}
	return commits, nil
}

// hasStaged reports whether the index differs from HEAD. Untracked files in
// the workspace do not count.
func hasStaged(status gogit.Status) bool {
	for _, fs := range status {
		if fs.Staging != gogit.Unmodified && fs.Staging != gogit.Untracked {
			return true
		}
	}
	return false
}

func (r *Repo) rel(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside of %s", p, r.dir)
	}
	return rel, nil
}
