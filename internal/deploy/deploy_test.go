package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/starford/quire/internal/testutil"
)

func newPublisher() *Publisher {
	p := New(testutil.Logger())
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func clone(t *testing.T, remote, branch string) (*git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	return repo, dir
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func TestPublish(t *testing.T) {
	tmp := t.TempDir()
	bare := filepath.Join(tmp, "remote.git")
	if _, err := git.PlainInit(bare, true); err != nil {
		t.Fatalf("init bare: %v", err)
	}
	site := filepath.Join(tmp, "_site")
	testutil.WriteFile(t, site, "index.html", "<h1>home</h1>")
	testutil.WriteFile(t, site, "css/main.css", "body{}")
	testutil.WriteFile(t, site, "old.html", "old")

	opts := Options{
		Dir:         site,
		Remote:      bare,
		Branch:      "gh-pages",
		CNAME:       "blog.example.com",
		AuthorName:  "Deployer",
		AuthorEmail: "deploy@example.com",
	}
	p := newPublisher()
	ctx := context.Background()

	res, err := p.Publish(ctx, opts)
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if !res.Pushed || res.Files != 3 || res.Commit == "" {
		t.Fatalf("first result = %+v", res)
	}
	_, dir := clone(t, bare, "gh-pages")
	for _, f := range []string{"index.html", "css/main.css", "old.html", "CNAME", ".nojekyll"} {
		if !exists(dir, f) {
			t.Errorf("%s missing from branch", f)
		}
	}
	if got := testutil.ReadFile(t, dir, "CNAME"); got != "blog.example.com\n" {
		t.Errorf("CNAME = %q", got)
	}

	res, err = p.Publish(ctx, opts)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if res.Pushed {
		t.Errorf("unchanged site should not push: %+v", res)
	}

	if err := os.Remove(filepath.Join(site, "old.html")); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, site, "new.html", "new")
	opts.Message = "Rebuild"
	res, err = p.Publish(ctx, opts)
	if err != nil {
		t.Fatalf("third publish: %v", err)
	}
	if !res.Pushed {
		t.Fatalf("third result = %+v", res)
	}

	repo, dir := clone(t, bare, "gh-pages")
	if exists(dir, "old.html") || !exists(dir, "new.html") {
		t.Error("branch tree does not mirror the site")
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		t.Fatal(err)
	}
	if commit.Message != "Rebuild" || commit.Author.Name != "Deployer" {
		t.Errorf("commit = %q by %q", commit.Message, commit.Author.Name)
	}
	if commit.NumParents() != 1 {
		t.Errorf("parents = %d, want history kept", commit.NumParents())
	}
}

func TestPublish_NoRemote(t *testing.T) {
	_, err := newPublisher().Publish(context.Background(), Options{Dir: t.TempDir()})
	if !errors.Is(err, ErrNoRemote) {
		t.Errorf("err = %v, want ErrNoRemote", err)
	}
}
