package metaengine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sealfs-project/sealfs/pkg/kv"
)

// FsckReport summarizes what a Fsck pass found and repaired.
type FsckReport struct {
	OrphanBlobsRemoved int
	OrphanDirEntries   int
	DanglingDirParents int
}

// Fsck implements this engine's realization of spec.md §4.6's closing
// consistency note: entry-add and attr-create are not made atomic across
// the dir/attr tables, so a crash between them can leave a dir entry
// with no matching attribute record, or an attribute record with no
// directory entry pointing at it, or a blob written to disk with no
// attribute record to own it. Fsck walks the tables and the blob store
// once at startup and removes what it finds orphaned, the same
// mark-and-sweep shape localdisk's generation check uses for a single
// table, generalized across three tables plus the blob store itself.
func (e *Engine) Fsck() (FsckReport, error) {
	var report FsckReport

	if err := e.fsckDirEntries(&report); err != nil {
		return report, err
	}
	if err := e.fsckDanglingParents(&report); err != nil {
		return report, err
	}
	if err := e.fsckOrphanBlobs(&report); err != nil {
		return report, err
	}
	return report, nil
}

// fsckDirEntries removes dir-table entries whose referenced path has no
// surviving attribute record.
func (e *Engine) fsckDirEntries(report *FsckReport) error {
	it := e.dirKV.Find(nil, nil)
	var toDelete [][]byte
	for it.Next() {
		key := string(it.Key())
		parent, name, ok := splitDirKey(key)
		if !ok {
			continue
		}
		childPath := join(parent, name)
		if _, ok := e.index.load(childPath); !ok {
			keyCopy := append([]byte(nil), it.Key()...)
			toDelete = append(toDelete, keyCopy)
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, key := range toDelete {
		if err := e.dirKV.Delete(key); err != nil {
			return err
		}
		report.OrphanDirEntries++
	}
	return nil
}

// fsckDanglingParents looks for attribute records whose parent directory
// no longer has an attribute record of its own, which can only happen
// after a crash mid-delete; the orphan and its blob (if any) are
// removed.
func (e *Engine) fsckDanglingParents(report *FsckReport) error {
	it := e.attrKV.Find(nil, nil)
	var orphans []string
	for it.Next() {
		p := string(it.Key())
		if isVolumeRecordKey(p) || p == "" {
			continue
		}
		parent, _, err := splitParent(p)
		if err != nil {
			continue // a volume root has no parent; never an orphan
		}
		if _, ok := e.index.load(parent); !ok {
			orphans = append(orphans, p)
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, p := range orphans {
		entry, ok := e.index.load(p)
		if ok && !entry.attr.IsDir() {
			e.blobs.Delete(p) // best-effort; the attr record is the source of truth
			e.contentKV.Delete([]byte(e.blobs.Name(p)))
			report.OrphanBlobsRemoved++
		}
		e.attrKV.Delete([]byte(p))
		e.index.delete(p)
		report.DanglingDirParents++
	}
	return nil
}

// fsckOrphanBlobs removes blob files on disk that contentKV has no
// path mapping for, or whose mapped path no longer has a surviving
// attribute record: spec.md §4.6's other orphan half, "files in the
// blob store with no path mapping", which fsckDanglingParents does not
// reach because it only ever walks attrKV forward from a live path.
func (e *Engine) fsckOrphanBlobs(report *FsckReport) error {
	var toRemove []string
	err := e.blobs.Walk(func(diskPath string) error {
		name := strings.TrimSuffix(filepath.Base(diskPath), ".blob")
		p, err := e.contentKV.Get([]byte(name))
		if err != nil {
			if err == kv.ErrNotFound {
				toRemove = append(toRemove, diskPath)
				return nil
			}
			return err
		}
		if _, ok := e.index.load(string(p)); !ok {
			toRemove = append(toRemove, diskPath)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, diskPath := range toRemove {
		if err := e.blobs.DeleteDisk(diskPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		e.contentKV.Delete([]byte(strings.TrimSuffix(filepath.Base(diskPath), ".blob")))
		report.OrphanBlobsRemoved++
	}
	return nil
}

// splitDirKey parses a "{parent}${name}${typeChar}" dir-table key back
// into its parent and name components.
func splitDirKey(key string) (parent, name string, ok bool) {
	parts := strings.Split(key, separator)
	if len(parts) < 3 {
		return "", "", false
	}
	typeCharPart := parts[len(parts)-1]
	namePart := parts[len(parts)-2]
	parentPart := strings.Join(parts[:len(parts)-2], separator)
	if len(typeCharPart) != 1 {
		return "", "", false
	}
	return parentPart, namePart, true
}
