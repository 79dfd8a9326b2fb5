// Package metaengine implements the per-server storage and metadata
// engine: the in-memory FileIndex, the three ordered KV tables backing
// it (file-content, dir, file-attr), volumes, and every POSIX-shaped
// operation in spec.md §4.6, plus a startup Fsck pass.
package metaengine

import (
	"path"
	"strings"

	"github.com/pkg/errors"
)

// separator joins a parent path, a child name and a one-byte type
// discriminator into the key used in the dir table, so that a prefix
// scan over "{parent}$" enumerates every child of parent in name order.
const separator = "$"

// dirKey builds the dir-table key for a (parent, name, kind) triple.
func dirKey(parent, name string, typeChar byte) []byte {
	return []byte(parent + separator + name + separator + string(typeChar))
}

// dirPrefix returns the dir-table prefix that matches every child entry
// of parent.
func dirPrefix(parent string) []byte {
	return []byte(parent + separator)
}

// splitParent splits an absolute path into its parent directory and base
// name. The root "/" and a volume root ("/vol" or a bare "vol") have no
// parent.
func splitParent(p string) (parent, name string, err error) {
	clean := path.Clean(p)
	parent = path.Dir(clean)
	if clean == "/" || clean == "." || parent == "/" || parent == "." {
		return "", "", errors.New("metaengine: path has no parent")
	}
	name = path.Base(clean)
	return parent, name, nil
}

// volumeName returns the top-level path component: the volume a path
// belongs to.
func volumeName(p string) string {
	trimmed := strings.TrimPrefix(path.Clean(p), "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// join is path.Join specialized to always keep a leading slash, matching
// the absolute-path convention every sealfs path uses.
func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
