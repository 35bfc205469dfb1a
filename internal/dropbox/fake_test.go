package dropbox

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
)

// fakeClient serves an in-memory tree. Keys of files are display paths.
type fakeClient struct {
	mu        sync.Mutex
	files     map[string]string
	listErr   map[string]error
	downErr   map[string]error
	downloads []string
}

func newFakeClient(files map[string]string) *fakeClient {
	return &fakeClient{
		files:   files,
		listErr: map[string]error{},
		downErr: map[string]error{},
	}
}

func (c *fakeClient) ListFolder(_ context.Context, dir string) ([]Entry, error) {
	if err := c.listErr[dir]; err != nil {
		return nil, err
	}

	prefix := dir + "/"
	seen := map[string]Entry{}
	for p, content := range c.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = Entry{Name: name, Path: prefix + name, Folder: true}
			continue
		}
		seen[name] = Entry{Name: name, Path: p, Size: uint64(len(content))}
	}

	entries := make([]Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (c *fakeClient) Download(_ context.Context, p string) (io.ReadCloser, error) {
	c.mu.Lock()
	c.downloads = append(c.downloads, p)
	c.mu.Unlock()

	if err := c.downErr[p]; err != nil {
		return nil, err
	}
	content, ok := c.files[p]
	if !ok {
		return nil, errors.New("not_found: " + path.Base(p))
	}
	return io.NopCloser(strings.NewReader(content)), nil
}
