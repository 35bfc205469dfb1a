package dropbox

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
)

// Inventory key prefixes.
const (
	dirKey  = "dir%"
	fileKey = "file%"
)

// Inventory is the set of folders and files already present locally, keyed
// the same way remote entries are.
type Inventory map[string]struct{}

// BuildInventory walks root. Folders are keyed "dir%/<rel>", files
// "file%/<rel>", or "file%/<name>" when flat.
func BuildInventory(root string, flat bool) (Inventory, error) {
	inv := make(Inventory)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			inv[dirKey+"/"+rel] = struct{}{}
		case d.Type().IsRegular():
			if flat {
				rel = path.Base(rel)
			}
			inv[fileKey+"/"+rel] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	return inv, nil
}

// Has reports whether key is present.
func (inv Inventory) Has(key string) bool {
	_, ok := inv[key]
	return ok
}

// Add records key.
func (inv Inventory) Add(key string) {
	inv[key] = struct{}{}
}

// folderKey and remoteFileKey take rel, the remote path relative to the
// synced root, starting with "/".
func folderKey(rel string) string {
	return dirKey + rel
}

func remoteFileKey(name, rel string, flat bool) string {
	if flat {
		return fileKey + "/" + name
	}
	return fileKey + rel
}
