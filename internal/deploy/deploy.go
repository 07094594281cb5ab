// Package deploy publishes the built site to a git branch, the way GitHub
// Pages expects it: the branch holds only the contents of the output
// directory, one commit per deploy.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

const remoteName = "origin"

// ErrNoRemote is returned when no remote is configured.
var ErrNoRemote = errors.New("deploy: no remote configured")

// Options configures Publish.
type Options struct {
	// Dir is the built site.
	Dir         string
	Remote      string
	Branch      string
	Token       string
	CNAME       string
	AuthorName  string
	AuthorEmail string
	// Message is the commit message; empty uses a timestamped default.
	Message string
}

// Result describes a finished deploy.
type Result struct {
	// Pushed is false when the branch already matched the site.
	Pushed bool
	Commit string
	Files  int
}

// Publisher pushes a directory to a branch.
type Publisher struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Publisher.
func New(logger *slog.Logger) *Publisher {
	return &Publisher{logger: logger, now: time.Now}
}

// Publish replaces the tree of opts.Branch on opts.Remote with the contents
// of opts.Dir, keeping the branch history. A missing branch is created.
func (p *Publisher) Publish(ctx context.Context, opts Options) (*Result, error) {
	if opts.Remote == "" {
		return nil, ErrNoRemote
	}
	if opts.Branch == "" {
		opts.Branch = "gh-pages"
	}

	work, err := os.MkdirTemp("", "quire-deploy-*")
	if err != nil {
		return nil, fmt.Errorf("deploy: temp dir: %w", err)
	}
	defer os.RemoveAll(work)

	repo, err := git.PlainInit(work, false)
	if err != nil {
		return nil, fmt.Errorf("deploy: init: %w", err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: remoteName, URLs: []string{opts.Remote}}); err != nil {
		return nil, fmt.Errorf("deploy: add remote: %w", err)
	}

	auth := authFor(opts.Token)
	branchRef := plumbing.NewBranchReferenceName(opts.Branch)
	if err := p.checkout(ctx, repo, branchRef, auth); err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("deploy: worktree: %w", err)
	}
	files, err := replaceTree(work, opts)
	if err != nil {
		return nil, err
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("deploy: stage: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("deploy: status: %w", err)
	}
	if status.IsClean() {
		p.logger.Info("deploy: nothing changed", slog.String("branch", opts.Branch))
		return &Result{Files: files}, nil
	}

	msg := opts.Message
	if msg == "" {
		msg = "Update " + p.now().UTC().Format(time.RFC3339)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  opts.AuthorName,
			Email: opts.AuthorEmail,
			When:  p.now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("deploy: commit: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", branchRef, branchRef))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("deploy: push: %w", err)
	}

	p.logger.Info("deploy: pushed",
		slog.String("branch", opts.Branch),
		slog.String("commit", hash.String()),
		slog.Int("files", files),
	)
	return &Result{Pushed: true, Commit: hash.String(), Files: files}, nil
}

// checkout points HEAD at branch, starting from the remote's copy of it
// when one exists.
func (p *Publisher) checkout(ctx context.Context, repo *git.Repository, branch plumbing.ReferenceName, auth transport.AuthMethod) error {
	remoteRef := plumbing.NewRemoteReferenceName(remoteName, branch.Short())
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+%s:%s", branch, remoteRef))},
		Auth:       auth,
	})
	var noMatch git.NoMatchingRefSpecError
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
	case errors.Is(err, transport.ErrEmptyRemoteRepository), errors.As(err, &noMatch):
		p.logger.Info("deploy: creating branch", slog.String("branch", branch.Short()))
		return repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch))
	default:
		return fmt.Errorf("deploy: fetch: %w", err)
	}

	ref, err := repo.Reference(remoteRef, true)
	if err != nil {
		return fmt.Errorf("deploy: resolve %s: %w", remoteRef, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branch, ref.Hash())); err != nil {
		return fmt.Errorf("deploy: create branch: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("deploy: worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: branch, Force: true}); err != nil {
		return fmt.Errorf("deploy: checkout: %w", err)
	}
	return nil
}

// replaceTree empties work (except .git) and copies the site into it,
// adding CNAME and .nojekyll. It returns the number of site files copied.
func replaceTree(work string, opts Options) (int, error) {
	entries, err := os.ReadDir(work)
	if err != nil {
		return 0, fmt.Errorf("deploy: read worktree: %w", err)
	}
	for _, e := range entries {
		if e.Name() == git.GitDirName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(work, e.Name())); err != nil {
			return 0, fmt.Errorf("deploy: clear worktree: %w", err)
		}
	}

	files := 0
	err = filepath.WalkDir(opts.Dir, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(opts.Dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.Name() == git.GitDirName {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(work, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files++
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return 0, fmt.Errorf("deploy: copy site: %w", err)
	}

	if opts.CNAME != "" {
		if err := os.WriteFile(filepath.Join(work, "CNAME"), []byte(opts.CNAME+"\n"), 0o644); err != nil {
			return 0, fmt.Errorf("deploy: write CNAME: %w", err)
		}
	}
	// The site is already built; Pages must not run Jekyll over it again.
	if err := os.WriteFile(filepath.Join(work, ".nojekyll"), nil, 0o644); err != nil {
		return 0, fmt.Errorf("deploy: write .nojekyll: %w", err)
	}
	return files, nil
}

func authFor(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "token", Password: token}
}
