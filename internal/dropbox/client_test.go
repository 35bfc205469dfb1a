package dropbox

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFilesAPI struct {
	pages     [][]files.IsMetadata
	cursors   []string
	listErr   error
	pageErr   error
	listArgs  []string
	downloads []string
}

func (f *fakeFilesAPI) ListFolder(arg *files.ListFolderArg) (*files.ListFolderResult, error) {
	f.listArgs = append(f.listArgs, arg.Path)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.page(0), nil
}

func (f *fakeFilesAPI) ListFolderContinue(arg *files.ListFolderContinueArg) (*files.ListFolderResult, error) {
	f.cursors = append(f.cursors, arg.Cursor)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	var idx int
	for i := range f.pages {
		if cursorFor(i) == arg.Cursor {
			idx = i + 1
		}
	}
	return f.page(idx), nil
}

func (f *fakeFilesAPI) Download(arg *files.DownloadArg) (*files.FileMetadata, io.ReadCloser, error) {
	f.downloads = append(f.downloads, arg.Path)
	meta := &files.FileMetadata{}
	meta.Name = "a.sps"
	return meta, io.NopCloser(strings.NewReader("payload")), nil
}

func (f *fakeFilesAPI) page(i int) *files.ListFolderResult {
	return &files.ListFolderResult{
		Entries: f.pages[i],
		Cursor:  cursorFor(i),
		HasMore: i < len(f.pages)-1,
	}
}

func cursorFor(i int) string {
	return "cursor-" + string(rune('a'+i))
}

func fileMeta(name, path string, size uint64) *files.FileMetadata {
	m := &files.FileMetadata{Size: size}
	m.Name = name
	m.PathDisplay = path
	return m
}

func folderMeta(name, path string) *files.FolderMetadata {
	m := &files.FolderMetadata{}
	m.Name = name
	m.PathDisplay = path
	return m
}

func TestSDKClient_ListFolderPaginates(t *testing.T) {
	deleted := &files.DeletedMetadata{}
	deleted.Name = "gone.sps"

	api := &fakeFilesAPI{
		pages: [][]files.IsMetadata{
			{fileMeta("a.sps", "/A.sps", 10), folderMeta("2024", "/2024")},
			{deleted},
			{fileMeta("b.sps", "/b.sps", 20)},
		},
	}

	entries, err := newClient(api).ListFolder(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Name: "a.sps", Path: "/A.sps", Size: 10},
		{Name: "2024", Path: "/2024", Folder: true},
		{Name: "b.sps", Path: "/b.sps", Size: 20},
	}, entries)
	assert.Equal(t, []string{""}, api.listArgs)
	assert.Equal(t, []string{"cursor-a", "cursor-b"}, api.cursors)
}

func TestSDKClient_ListFolderErrors(t *testing.T) {
	api := &fakeFilesAPI{listErr: errors.New("path/not_found")}
	_, err := newClient(api).ListFolder(context.Background(), "/missing")
	require.Error(t, err)
	assert.ErrorContains(t, err, `listing folder "/missing"`)

	api = &fakeFilesAPI{
		pages:   [][]files.IsMetadata{{}, {}},
		pageErr: errors.New("reset"),
	}
	_, err = newClient(api).ListFolder(context.Background(), "")
	assert.ErrorContains(t, err, "continuing listing")
}

func TestSDKClient_ListFolderCancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	api := &fakeFilesAPI{pages: [][]files.IsMetadata{{}, {}}}
	_, err := newClient(api).ListFolder(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.cursors)
}

func TestSDKClient_Download(t *testing.T) {
	api := &fakeFilesAPI{}
	rc, err := newClient(api).Download(context.Background(), "/a.sps")
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
	assert.Equal(t, []string{"/a.sps"}, api.downloads)
}
