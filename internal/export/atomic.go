package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// outputFileMode is the permission of the written YAML file.
const outputFileMode = 0644

// WriteFileAtomic replaces path with data.
//
// The data goes to a temporary file in the same directory, is synced, and
// is renamed over path. Readers see either the old or the new content. On
// any error the temporary file is removed and path is unchanged.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()        //nolint:errcheck // already failing
			os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Chmod(outputFileMode); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	// Persist the rename itself; not all filesystems support syncing a directory.
	if d, derr := os.Open(dir); derr == nil {
		d.Sync()  //nolint:errcheck // best effort
		d.Close() //nolint:errcheck // read-only handle
	}
	return nil
}
