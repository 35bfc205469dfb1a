// Package dropbox mirrors a Dropbox folder tree into a local directory.
package dropbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
)

// Entry is a remote file or folder.
type Entry struct {
	Name   string
	Path   string // Display path, rooted at "/"
	Folder bool
	Size   uint64
}

// Client is the subset of the Dropbox API the syncer needs.
type Client interface {
	// ListFolder returns every entry directly inside path, following
	// pagination. The root folder is "".
	ListFolder(ctx context.Context, path string) ([]Entry, error)

	// Download opens the content of the file at path.
	Download(ctx context.Context, path string) (io.ReadCloser, error)
}

// filesAPI is implemented by files.Client.
type filesAPI interface {
	ListFolder(arg *files.ListFolderArg) (*files.ListFolderResult, error)
	ListFolderContinue(arg *files.ListFolderContinueArg) (*files.ListFolderResult, error)
	Download(arg *files.DownloadArg) (*files.FileMetadata, io.ReadCloser, error)
}

// SDKClient adapts the Dropbox SDK files client.
type SDKClient struct {
	api    filesAPI
	logger *slog.Logger
}

// ClientOption customises an SDKClient.
type ClientOption func(*SDKClient)

// WithClientLogger sets the logger used for pagination progress.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *SDKClient) {
		c.logger = logger.With(slog.String("component", "dropbox-client"))
	}
}

// NewClient creates a client authenticated with an access token.
func NewClient(token string, opts ...ClientOption) *SDKClient {
	cfg := dropbox.Config{
		Token:    token,
		LogLevel: dropbox.LogOff,
	}
	return newClient(files.New(cfg), opts...)
}

func newClient(api filesAPI, opts ...ClientOption) *SDKClient {
	c := &SDKClient{
		api:    api,
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SDKClient) ListFolder(ctx context.Context, path string) ([]Entry, error) {
	res, err := c.api.ListFolder(files.NewListFolderArg(path))
	if err != nil {
		return nil, fmt.Errorf("listing folder %q: %w", path, err)
	}

	entries := convertEntries(nil, res.Entries)
	for page := 2; res.HasMore; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.logger.Debug("fetching next page", slog.String("path", path), slog.Int("page", page))

		res, err = c.api.ListFolderContinue(files.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, fmt.Errorf("continuing listing of %q: %w", path, err)
		}
		entries = convertEntries(entries, res.Entries)
	}

	return entries, nil
}

func (c *SDKClient) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, content, err := c.api.Download(files.NewDownloadArg(path))
	if err != nil {
		return nil, fmt.Errorf("downloading %q: %w", path, err)
	}
	return content, nil
}

// convertEntries appends files and folders; deleted entries are dropped.
func convertEntries(dst []Entry, src []files.IsMetadata) []Entry {
	for _, m := range src {
		switch v := m.(type) {
		case *files.FileMetadata:
			dst = append(dst, Entry{Name: v.Name, Path: v.PathDisplay, Size: v.Size})
		case *files.FolderMetadata:
			dst = append(dst, Entry{Name: v.Name, Path: v.PathDisplay, Folder: true})
		}
	}
	return dst
}
