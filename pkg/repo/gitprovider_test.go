package repo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Masterminds/vcs"
)

// runGit runs a git command in dir and fails the test on error, returning
// trimmed stdout.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// newTestRepo builds a source repository with two commits and a tag on the
// first, then a regular (non-bare) clone of it, and returns a gitRepository
// wrapping the clone plus the two commit hashes. A regular clone is used
// instead of a mirror clone so Update (fetch+pull) succeeds against it,
// which a bare mirror's missing work tree cannot do.
func newTestRepo(t *testing.T) (gr *gitRepository, clone string, first, second string) {
	t.Helper()
	root := t.TempDir()
	work := filepath.Join(root, "work")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}
	runGit(t, work, "init", "-q")
	runGit(t, work, "config", "user.email", "a@b.com")
	runGit(t, work, "config", "user.name", "tester")
	if err := os.WriteFile(filepath.Join(work, "a.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, work, "add", "a.txt")
	runGit(t, work, "commit", "-q", "-m", "first")
	first = runGit(t, work, "rev-parse", "HEAD")
	runGit(t, work, "tag", "v1.0.0")

	if err := os.WriteFile(filepath.Join(work, "b.txt"), []byte("world\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, work, "add", "b.txt")
	runGit(t, work, "commit", "-q", "-m", "second")
	second = runGit(t, work, "rev-parse", "HEAD")

	clone = filepath.Join(root, "clone")
	runGit(t, root, "clone", "-q", work, clone)

	r, err := vcs.NewGitRepo(work, clone)
	if err != nil {
		t.Fatal(err)
	}
	gr = &gitRepository{r: r, path: filepath.Join(clone, ".git")}
	return gr, clone, first, second
}

// breakDisk renames the clone's working directory away so any subsequent
// `git` invocation against it fails, proving a later call that still
// succeeds must have been served from cache.
func breakDisk(t *testing.T, clone string) {
	t.Helper()
	if err := os.Rename(clone, clone+".broken"); err != nil {
		t.Fatal(err)
	}
}

func TestGitRepositoryResolveRevisionCachedAcrossCalls(t *testing.T) {
	gr, clone, first, _ := newTestRepo(t)
	ctx := context.Background()

	rev, err := gr.ResolveRevision(ctx, "v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if string(rev) != first {
		t.Fatalf("ResolveRevision(v1.0.0) = %s, want %s", rev, first)
	}

	breakDisk(t, clone)

	rev2, err := gr.ResolveRevision(ctx, "v1.0.0")
	if err != nil {
		t.Fatalf("cached ResolveRevision should not touch disk: %v", err)
	}
	if rev2 != rev {
		t.Errorf("cached ResolveRevision = %s, want %s", rev2, rev)
	}

	if _, err := gr.ResolveRevision(ctx, "master"); err == nil {
		t.Fatal("expected error resolving an uncached identifier once the disk is unreachable")
	}
}

func TestGitRepositoryFetchInvalidatesCommitCache(t *testing.T) {
	gr, _, _, _ := newTestRepo(t)
	ctx := context.Background()

	if _, err := gr.ResolveRevision(ctx, "v1.0.0"); err != nil {
		t.Fatal(err)
	}
	if len(gr.commits) == 0 {
		t.Fatal("expected commitInfo to populate the cache")
	}

	if err := gr.Fetch(ctx); err != nil {
		t.Fatal(err)
	}
	if gr.commits != nil {
		t.Error("Fetch should clear the commit cache")
	}
	if gr.tags != nil || gr.valid {
		t.Error("Fetch should also clear the pre-existing tags cache")
	}
}

func TestGitFileViewReadFileCached(t *testing.T) {
	gr, clone, first, second := newTestRepo(t)
	ctx := context.Background()

	fsAtFirst, err := gr.OpenFileView(ctx, Revision(first))
	if err != nil {
		t.Fatal(err)
	}
	data, err := fsAtFirst.ReadFile("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("ReadFile(a.txt) = %q, want %q", data, "hello\n")
	}

	fsAtSecond, err := gr.OpenFileView(ctx, Revision(second))
	if err != nil {
		t.Fatal(err)
	}

	breakDisk(t, clone)

	data2, err := fsAtFirst.ReadFile("a.txt")
	if err != nil {
		t.Fatalf("cached ReadFile should not touch disk: %v", err)
	}
	if string(data2) != "hello\n" {
		t.Errorf("cached ReadFile(a.txt) = %q, want %q", data2, "hello\n")
	}

	if _, err := fsAtSecond.ReadFile("b.txt"); err == nil {
		t.Fatal("expected error reading an uncached blob once the disk is unreachable")
	}
}

func TestGitFileViewStatAndWalkCached(t *testing.T) {
	gr, clone, first, _ := newTestRepo(t)
	ctx := context.Background()

	view, err := gr.OpenFileView(ctx, Revision(first))
	if err != nil {
		t.Fatal(err)
	}

	exists, isDir, err := view.Stat("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !exists || isDir {
		t.Fatalf("Stat(a.txt) = (%v, %v), want (true, false)", exists, isDir)
	}

	var walked []string
	if err := view.Walk(".", func(path string, isDir bool) error {
		walked = append(walked, path)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(walked) == 0 {
		t.Fatal("expected Walk to report at least a.txt")
	}

	breakDisk(t, clone)

	exists2, isDir2, err := view.Stat("a.txt")
	if err != nil {
		t.Fatalf("cached Stat should not touch disk: %v", err)
	}
	if exists2 != exists || isDir2 != isDir {
		t.Errorf("cached Stat(a.txt) = (%v, %v), want (%v, %v)", exists2, isDir2, exists, isDir)
	}

	var walked2 []string
	if err := view.Walk(".", func(path string, isDir bool) error {
		walked2 = append(walked2, path)
		return nil
	}); err != nil {
		t.Fatalf("cached Walk should not touch disk: %v", err)
	}
	if len(walked2) != len(walked) {
		t.Errorf("cached Walk returned %d entries, want %d", len(walked2), len(walked))
	}

	if _, _, err := view.Stat("c.txt"); err == nil {
		t.Fatal("expected error statting an uncached path once the disk is unreachable")
	}
}
