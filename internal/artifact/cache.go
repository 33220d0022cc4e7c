package artifact

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// IndexFile is the name of the cache index under the root.
const IndexFile = "cache.jsonc"

const indexHeader = "// Artifact cache index: url -> local file and md5.\n// Remove an entry to force a new download.\n"

// Entry is one cached artifact.
type Entry struct {
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	MD5        string    `json:"md5"`
	Size       int64     `json:"size"`
	Downloaded time.Time `json:"downloaded"`
}

// Cache downloads artifacts once. The zero value is not usable; set Root.
type Cache struct {
	Root string
	// Client defaults to http.DefaultClient.
	Client *http.Client

	mu    sync.Mutex
	group singleflight.Group
}

// New returns a cache rooted at root.
func New(root string) *Cache {
	return &Cache{Root: root}
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve returns a local path for ref: remote URLs go through Get, any
// other value must name an existing file.
func (c *Cache) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if IsRemote(ref) {
		return c.Get(ctx, ref)
	}
	if _, err := os.Stat(ref); err != nil {
		return "", api.WrapError(api.FileNotFound, err, "artifact %s not found", ref)
	}
	return ref, nil
}

// Get returns the local copy of rawURL, downloading it when it is missing
// or its MD5 no longer matches the index.
func (c *Cache) Get(ctx context.Context, rawURL string) (string, error) {
	v, err, _ := c.group.Do(rawURL, func() (any, error) {
		return c.get(ctx, rawURL)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) get(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !IsRemote(rawURL) {
		return "", api.NewError(api.InvalidParameter, "artifact url %q is not an http(s) url", rawURL)
	}

	idx, err := c.readIndex()
	if err != nil {
		return "", err
	}
	if e, ok := idx[rawURL]; ok {
		sum, err := fileMD5(e.Path)
		switch {
		case err == nil && strings.EqualFold(sum, e.MD5):
			logging.Debug("Artifact", "Cache hit for %s: %s", rawURL, e.Path)
			return e.Path, nil
		case err == nil:
			logging.Warn("Artifact", "%s: md5 %s does not match the index (%s), downloading again", e.Path, sum, e.MD5)
		default:
			logging.Info("Artifact", "Cached copy of %s is gone, downloading again", rawURL)
		}
	}

	dest := c.PathFor(u)
	e, err := c.download(ctx, rawURL, dest)
	if err != nil {
		return "", err
	}
	if err := c.update(e); err != nil {
		return "", err
	}
	return dest, nil
}

// PathFor returns where the artifact at u is stored.
func (c *Cache) PathFor(u *url.URL) string {
	sum := blake3.Sum256([]byte(u.String()))
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "artifact"
	}
	return filepath.Join(c.Root, hex.EncodeToString(sum[:16]), name)
}

func (c *Cache) download(ctx context.Context, rawURL, dest string) (Entry, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Entry{}, api.WrapError(api.InvalidParameter, err, "artifact url %q", rawURL)
	}
	logging.Info("Artifact", "Downloading %s", rawURL)
	resp, err := client.Do(req)
	if err != nil {
		return Entry{}, api.WrapError(api.OperationFailed, err, "download %s", rawURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Entry{}, api.NewError(api.OperationFailed, "download %s: %s", rawURL, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Entry{}, api.WrapError(api.OperationFailed, err, "create %s", filepath.Dir(dest))
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return Entry{}, api.WrapError(api.OperationFailed, err, "create download file")
	}
	defer os.Remove(tmp.Name())

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Entry{}, api.WrapError(api.OperationFailed, err, "download %s", rawURL)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Entry{}, api.WrapError(api.OperationFailed, err, "store %s", dest)
	}
	logging.Info("Artifact", "Stored %s (%d bytes)", dest, n)
	return Entry{
		URL:        rawURL,
		Path:       dest,
		MD5:        hex.EncodeToString(h.Sum(nil)),
		Size:       n,
		Downloaded: time.Now().UTC(),
	}, nil
}

// Entries returns the index, keyed by URL.
func (c *Cache) Entries() (map[string]Entry, error) {
	return c.readIndex()
}

func (c *Cache) readIndex() (map[string]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readIndexLocked()
}

func (c *Cache) readIndexLocked() (map[string]Entry, error) {
	idx := make(map[string]Entry)
	data, err := os.ReadFile(filepath.Join(c.Root, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, api.WrapError(api.OperationFailed, err, "read artifact index")
	}
	var entries []Entry
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return nil, api.WrapError(api.InvalidParameter, err, "parse %s", filepath.Join(c.Root, IndexFile))
	}
	for _, e := range entries {
		idx[e.URL] = e
	}
	return idx, nil
}

func (c *Cache) update(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.readIndexLocked()
	if err != nil {
		return err
	}
	idx[e.URL] = e

	entries := make([]Entry, 0, len(idx))
	for _, v := range idx {
		entries = append(entries, v)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.URL, b.URL) })
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	out := append([]byte(indexHeader), data...)
	out = append(out, '\n')
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return api.WrapError(api.OperationFailed, err, "create %s", c.Root)
	}
	if err := os.WriteFile(filepath.Join(c.Root, IndexFile), out, 0o644); err != nil {
		return api.WrapError(api.OperationFailed, err, "write artifact index")
	}
	return nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
