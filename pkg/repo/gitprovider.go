package repo

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/vcs"
	"github.com/karrick/godirwalk"
	shutil "github.com/termie/go-shutil"

	"github.com/forgepm/forge/pkg/ident"
	"github.com/forgepm/forge/pkg/manifest"
)

// GitProvider is the built-in Provider, wrapping Masterminds/vcs's GitRepo.
type GitProvider struct{}

// NewGitProvider returns the default git-backed Provider.
func NewGitProvider() *GitProvider { return &GitProvider{} }

func (p *GitProvider) Fetch(ctx context.Context, ref ident.Reference, destination string) error {
	if _, err := os.Stat(destination); err == nil {
		return wrap(os.ErrExist, "fetch destination %s already exists", destination)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return wrap(err, "creating parent of %s", destination)
	}

	// A bare mirror clone: every ref, no working tree.
	cmd := exec.CommandContext(ctx, "git", "clone", "--mirror", ref.Location, destination)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return wrap(err, "git clone --mirror %s: %s", ref.Location, string(out))
	}
	return nil
}

func (p *GitProvider) Open(ctx context.Context, ref ident.Reference, path string) (Repository, error) {
	if !isBareRepo(path) {
		return nil, &NotABareRepo{Path: path}
	}
	r, err := vcs.NewGitRepo(ref.Location, path)
	if err != nil {
		return nil, wrap(err, "opening bare repo at %s", path)
	}
	return &gitRepository{r: r, path: path}, nil
}

func (p *GitProvider) CloneCheckout(ctx context.Context, ref ident.Reference, source, destination string, editable bool) error {
	if editable {
		cmd := exec.CommandContext(ctx, "git", "clone", source, destination)
		if out, err := cmd.CombinedOutput(); err != nil {
			return wrap(err, "git clone %s %s: %s", source, destination, string(out))
		}
		// Rewrite the remote to the canonical upstream so edits push back
		// to the real location, not the local bare cache.
		cmd = exec.CommandContext(ctx, "git", "-C", destination, "remote", "set-url", "origin", ref.Location)
		if out, err := cmd.CombinedOutput(); err != nil {
			return wrap(err, "git remote set-url: %s", string(out))
		}
		return nil
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--shared", source, destination)
	if out, err := cmd.CombinedOutput(); err != nil {
		return wrap(err, "git clone --shared %s %s: %s", source, destination, string(out))
	}
	return nil
}

func (p *GitProvider) CheckoutExists(path string) (bool, error) {
	fi, err := os.Stat(filepath.Join(path, ".git"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, wrap(err, "stat %s", path)
	}
	return fi != nil, nil
}

func (p *GitProvider) OpenCheckout(path string) (manifest.FileSystem, error) {
	exists, err := p.CheckoutExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, wrap(os.ErrNotExist, "no checkout at %s", path)
	}
	return &dirFileSystem{root: path}, nil
}

func (p *GitProvider) Copy(src, dst string) error {
	_, err := shutil.CopyTree(src, dst, nil)
	if err != nil {
		return wrap(err, "copying %s to %s", src, dst)
	}
	return nil
}

func isBareRepo(path string) bool {
	fi, err := os.Stat(filepath.Join(path, "HEAD"))
	return err == nil && !fi.IsDir()
}

// gitRepository implements Repository over a bare Masterminds/vcs GitRepo.
type gitRepository struct {
	r    *vcs.GitRepo
	path string

	mu    chan struct{} // 1-buffered writer barrier, see lockWrite/unlockWrite
	tags  []string
	brs   []string
	valid bool

	// cacheMu guards the memoized resolved-revision, tree, and blob lookups
	// below. OpenFileView/ResolveRevision are called once per container per
	// candidate during a resolve, so without this every call reshells out to
	// git; Fetch clears all five maps the same way it clears tags/brs.
	cacheMu  sync.Mutex
	commits  map[string]*vcs.CommitInfo
	blobs    map[fileCacheKey][]byte
	blobErrs map[fileCacheKey]error
	stats    map[fileCacheKey]statEntry
	trees    map[fileCacheKey][]string
}

// fileCacheKey identifies one (revision, path) lookup against a bare
// repository's tree/blob data.
type fileCacheKey struct {
	revision Revision
	path     string
}

type statEntry struct {
	exists bool
	isDir  bool
}

// commitInfo resolves identifier (a tag, branch tip, or raw SHA) through the
// underlying GitRepo, memoized: ResolveRevision, Exists, and CommitTime all
// resolve the same identifiers repeatedly across one resolve.
func (g *gitRepository) commitInfo(identifier string) (*vcs.CommitInfo, error) {
	g.cacheMu.Lock()
	if info, ok := g.commits[identifier]; ok {
		g.cacheMu.Unlock()
		return info, nil
	}
	g.cacheMu.Unlock()

	info, err := g.r.CommitInfo(identifier)
	if err != nil {
		return nil, err
	}

	g.cacheMu.Lock()
	if g.commits == nil {
		g.commits = make(map[string]*vcs.CommitInfo)
	}
	g.commits[identifier] = info
	g.cacheMu.Unlock()
	return info, nil
}

func (g *gitRepository) lockWrite() {
	if g.mu == nil {
		g.mu = make(chan struct{}, 1)
	}
	g.mu <- struct{}{}
}

func (g *gitRepository) unlockWrite() { <-g.mu }

func (g *gitRepository) Tags(ctx context.Context) ([]string, error) {
	if g.valid {
		return g.tags, nil
	}
	tags, err := g.r.Tags()
	if err != nil {
		return nil, wrap(err, "listing tags")
	}
	g.tags = tags
	g.valid = true
	return tags, nil
}

func (g *gitRepository) Branches(ctx context.Context) ([]string, error) {
	if g.brs != nil {
		return g.brs, nil
	}
	brs, err := g.r.Branches()
	if err != nil {
		return nil, wrap(err, "listing branches")
	}
	g.brs = brs
	return brs, nil
}

func (g *gitRepository) ResolveRevision(ctx context.Context, identifier string) (Revision, error) {
	info, err := g.commitInfo(identifier)
	if err != nil {
		if suggestion := renamedDefaultBranch(identifier); suggestion != "" {
			if _, err2 := g.commitInfo(suggestion); err2 == nil {
				return "", &RevisionNotFound{Identifier: identifier, Suggestion: suggestion}
			}
		}
		return "", &RevisionNotFound{Identifier: identifier}
	}
	return Revision(info.Commit), nil
}

// renamedDefaultBranch implements the "master -> main" suggestion as a
// lookup table rather than a heuristic, so the suggestion is never
// surprising.
func renamedDefaultBranch(identifier string) string {
	if identifier == "master" {
		return "main"
	}
	return ""
}

func (g *gitRepository) Fetch(ctx context.Context) error {
	g.lockWrite()
	defer g.unlockWrite()

	if err := g.r.Update(); err != nil {
		return wrap(err, "fetching %s", g.r.Remote())
	}
	g.valid = false
	g.tags = nil
	g.brs = nil

	g.cacheMu.Lock()
	g.commits = nil
	g.blobs = nil
	g.blobErrs = nil
	g.stats = nil
	g.trees = nil
	g.cacheMu.Unlock()
	return nil
}

func (g *gitRepository) Exists(ctx context.Context, revision Revision) (bool, error) {
	_, err := g.commitInfo(string(revision))
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (g *gitRepository) OpenFileView(ctx context.Context, revision Revision) (manifest.FileSystem, error) {
	return &gitFileView{repo: g, revision: revision}, nil
}

func (g *gitRepository) CommitTime(ctx context.Context, revision Revision) (time.Time, error) {
	info, err := g.commitInfo(string(revision))
	if err != nil {
		return time.Time{}, wrap(err, "commit info for %s", revision)
	}
	return info.Date, nil
}

// gitFileView is an immutable manifest.FileSystem reading file contents out
// of a bare repository at a fixed revision via `git show`/`git ls-tree`, a
// deliberate bridge between a blocking caller and the repository layer.
// Every lookup is memoized on the owning gitRepository, since the graph
// loader and container dependency queries reopen the same (revision, path)
// repeatedly.
type gitFileView struct {
	repo     *gitRepository
	revision Revision
}

func (v *gitFileView) ReadFile(path string) ([]byte, error) {
	key := fileCacheKey{revision: v.revision, path: path}

	v.repo.cacheMu.Lock()
	if data, ok := v.repo.blobs[key]; ok {
		v.repo.cacheMu.Unlock()
		return data, nil
	}
	if err, ok := v.repo.blobErrs[key]; ok {
		v.repo.cacheMu.Unlock()
		return nil, err
	}
	v.repo.cacheMu.Unlock()

	cmd := exec.Command("git", "--git-dir", v.repo.path, "show", string(v.revision)+":"+path)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		wrapped := wrap(err, "reading %s@%s: %s", path, v.revision, errOut.String())
		v.repo.cacheMu.Lock()
		if v.repo.blobErrs == nil {
			v.repo.blobErrs = make(map[fileCacheKey]error)
		}
		v.repo.blobErrs[key] = wrapped
		v.repo.cacheMu.Unlock()
		return nil, wrapped
	}

	data := out.Bytes()
	v.repo.cacheMu.Lock()
	if v.repo.blobs == nil {
		v.repo.blobs = make(map[fileCacheKey][]byte)
	}
	v.repo.blobs[key] = data
	v.repo.cacheMu.Unlock()
	return data, nil
}

func (v *gitFileView) Stat(path string) (bool, bool, error) {
	key := fileCacheKey{revision: v.revision, path: path}

	v.repo.cacheMu.Lock()
	if e, ok := v.repo.stats[key]; ok {
		v.repo.cacheMu.Unlock()
		return e.exists, e.isDir, nil
	}
	v.repo.cacheMu.Unlock()

	cmd := exec.Command("git", "--git-dir", v.repo.path, "ls-tree", string(v.revision), "--", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return false, false, wrap(err, "stat %s@%s", path, v.revision)
	}

	var entry statEntry
	if line := strings.TrimSpace(out.String()); line != "" {
		fields := strings.Fields(line)
		entry = statEntry{exists: true, isDir: len(fields) > 1 && fields[1] == "tree"}
	}

	v.repo.cacheMu.Lock()
	if v.repo.stats == nil {
		v.repo.stats = make(map[fileCacheKey]statEntry)
	}
	v.repo.stats[key] = entry
	v.repo.cacheMu.Unlock()

	return entry.exists, entry.isDir, nil
}

func (v *gitFileView) Walk(root string, fn func(path string, isDir bool) error) error {
	key := fileCacheKey{revision: v.revision, path: root}

	v.repo.cacheMu.Lock()
	lines, ok := v.repo.trees[key]
	v.repo.cacheMu.Unlock()

	if !ok {
		cmd := exec.Command("git", "--git-dir", v.repo.path, "ls-tree", "-r", "--name-only", string(v.revision), "--", root)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return wrap(err, "walking %s@%s", root, v.revision)
		}
		lines = strings.Split(strings.TrimSpace(out.String()), "\n")

		v.repo.cacheMu.Lock()
		if v.repo.trees == nil {
			v.repo.trees = make(map[fileCacheKey][]string)
		}
		v.repo.trees[key] = lines
		v.repo.cacheMu.Unlock()
	}

	for _, l := range lines {
		if l == "" {
			continue
		}
		if err := fn(l, false); err != nil {
			return err
		}
	}
	return nil
}

func (v *gitFileView) Root() string {
	return v.repo.path + "@" + string(v.revision)
}

// dirFileSystem is a plain, mutable on-disk FileSystem used for working
// trees produced by CloneCheckout (non-editable and editable alike).
type dirFileSystem struct {
	root string
}

func (d *dirFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.root, path))
}

func (d *dirFileSystem) Stat(path string) (bool, bool, error) {
	fi, err := os.Stat(filepath.Join(d.root, path))
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return true, fi.IsDir(), nil
}

// Walk uses godirwalk rather than filepath.Walk: it skips an os.Stat per
// node by reading the node's type out of the parent directory listing,
// which matters for the wide, shallow trees target source discovery walks.
func (d *dirFileSystem) Walk(root string, fn func(path string, isDir bool) error) error {
	return godirwalk.Walk(filepath.Join(d.root, root), &godirwalk.Options{
		Callback: func(p string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(d.root, p)
			if err != nil {
				return err
			}
			return fn(rel, de.IsDir())
		},
	})
}

func (d *dirFileSystem) Root() string { return d.root }
