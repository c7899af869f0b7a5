package policy

import (
	"io/fs"
	"os"
	"path"
)

// ReadBundle collects every .rego module under root in fsys, keyed by its
// slash-separated path. Nested directories are walked.
func ReadBundle(fsys fs.FS, root string) (map[string]string, error) {
	modules := make(map[string]string)
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".rego" {
			return nil
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		modules[p] = string(src)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return modules, nil
}

// ReadBundleDir is ReadBundle over a directory on disk.
func ReadBundleDir(dir string) (map[string]string, error) {
	return ReadBundle(os.DirFS(dir), ".")
}
