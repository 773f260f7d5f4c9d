package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cloudapp/socialforum/storage"
)

// MediaFolders are the object-store prefixes subject to orphan
// classification. Keys outside these folders are never reported.
var MediaFolders = []string{"images/", "videos/"}

// Report summarizes one reconciliation scan. It is ephemeral and never
// persisted.
type Report struct {
	TotalObjectKeys     int      `json:"total_object_keys"`
	TotalReferencedKeys int      `json:"total_referenced_keys"`
	OrphanKeys          []string `json:"orphan_keys"`
}

// ObjectLister is the slice of the object store the reconciler consumes.
type ObjectLister interface {
	ListAllKeys(ctx context.Context) ([]string, error)
	DeleteObject(ctx context.Context, key string) error
}

// Reconciler detects and removes object-store keys no live relational row
// references. Scan and Cleanup are deliberately separate phases: a scan
// snapshot is not transactionally consistent with the object store, so an
// operator approves the orphan set (ideally after a fresh scan) before
// anything is deleted.
type Reconciler struct {
	posts   PostStore
	store   ObjectLister
	folders []string
	log     *zap.SugaredLogger
}

// NewReconciler wires a Reconciler watching the default media folders.
func NewReconciler(posts PostStore, store ObjectLister, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{posts: posts, store: store, folders: MediaFolders, log: log}
}

// Scan lists the bucket, resolves every live media reference and reports the
// difference. Any listing or row-load failure aborts the scan; no partial
// report is returned.
func (r *Reconciler) Scan(ctx context.Context) (*Report, error) {
	keys, err := r.store.ListAllKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list object keys: %w", err)
	}

	posts, err := r.posts.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	referenced := make(map[string]struct{})
	for i := range posts {
		for _, ref := range posts[i].MediaReferences() {
			if key := storage.ResolveMediaKey(ref); key != "" {
				referenced[key] = struct{}{}
			}
		}
	}

	var orphans []string
	for _, key := range keys {
		if !r.inMediaFolder(key) {
			continue
		}
		if _, ok := referenced[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)

	report := &Report{
		TotalObjectKeys:     len(keys),
		TotalReferencedKeys: len(referenced),
		OrphanKeys:          orphans,
	}
	r.log.Infow("orphan scan complete",
		"object_keys", report.TotalObjectKeys,
		"referenced_keys", report.TotalReferencedKeys,
		"orphans", len(orphans))
	return report, nil
}

// Cleanup deletes the caller-approved keys, best effort. Only keys still
// present in a fresh listing count as deleted, so repeating a cleanup on
// already-gone keys returns 0 without error. Individual failures are logged
// and swallowed, never retried.
func (r *Reconciler) Cleanup(ctx context.Context, keys []string) int {
	existing, err := r.store.ListAllKeys(ctx)
	if err != nil {
		r.log.Warnw("cleanup listing failed, nothing deleted", "err", err)
		return 0
	}
	present := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		present[k] = struct{}{}
	}

	deleted := 0
	for _, key := range keys {
		if _, ok := present[key]; !ok {
			continue
		}
		if err := r.store.DeleteObject(ctx, key); err != nil {
			r.log.Warnw("orphan delete failed", "key", key, "err", err)
			continue
		}
		deleted++
	}
	r.log.Infow("orphan cleanup finished", "requested", len(keys), "deleted", deleted)
	return deleted
}

func (r *Reconciler) inMediaFolder(key string) bool {
	for _, folder := range r.folders {
		if strings.HasPrefix(key, folder) {
			return true
		}
	}
	return false
}
