package dropbox

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Kasper-Heliophysics-MDP/FileTools/internal/fsutil"
)

// Manifest lists created folders and downloaded files, indented by depth.
type Manifest struct {
	sb strings.Builder
}

// Folder records a created folder.
func (m *Manifest) Folder(name string, depth int) {
	m.line("+d:", name, depth)
}

// File records a downloaded file.
func (m *Manifest) File(name string, depth int) {
	m.line("+f:", name, depth)
}

func (m *Manifest) line(prefix, name string, depth int) {
	m.sb.WriteString(prefix)
	m.sb.WriteString(strings.Repeat("\t", depth))
	m.sb.WriteString(name)
	m.sb.WriteByte('\n')
}

// String returns the manifest content.
func (m *Manifest) String() string {
	return m.sb.String()
}

// ManifestPath returns <dir>/dbx_<YYYY-MM-DD>.out for the given day.
func ManifestPath(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("dbx_%s.out", day.Format(time.DateOnly)))
}

// WriteFile writes the manifest to dest atomically.
func (m *Manifest) WriteFile(dest string) error {
	return fsutil.WriteFile(dest, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, m.String())
		return err
	})
}
