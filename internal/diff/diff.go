// internal/diff/diff.go
package diff

import (
	"sort"

	"lvcs/internal/patch"
)

// Plan is the set of working-tree changes needed to move from one manifest
// to another. Entries are compared as (fingerprint, path) pairs: an object
// that keeps its fingerprint but moves to another path is unlinked at the
// old path and linked at the new one.
type Plan struct {
	Link   []patch.Entry // only in the new manifest
	Unlink []patch.Entry // only in the old manifest
	Keep   []patch.Entry // identical in both
}

// Stats summarises a plan for reporting.
type Stats struct {
	Additions int
	Deletions int
	Unchanged int
}

// Manifests computes the plan from one manifest to another. A nil from
// means an empty working tree.
func Manifests(from, to patch.Manifest) *Plan {
	plan := &Plan{}

	for fp, path := range to {
		if oldPath, ok := from[fp]; ok && oldPath == path {
			plan.Keep = append(plan.Keep, patch.Entry{Path: path, Fingerprint: fp})
			continue
		}
		plan.Link = append(plan.Link, patch.Entry{Path: path, Fingerprint: fp})
	}

	for fp, path := range from {
		if newPath, ok := to[fp]; ok && newPath == path {
			continue
		}
		plan.Unlink = append(plan.Unlink, patch.Entry{Path: path, Fingerprint: fp})
	}

	sortByPath(plan.Link)
	sortByPath(plan.Unlink)
	sortByPath(plan.Keep)
	return plan
}

func (p *Plan) Empty() bool {
	return len(p.Link) == 0 && len(p.Unlink) == 0
}

func (p *Plan) Stats() Stats {
	return Stats{
		Additions: len(p.Link),
		Deletions: len(p.Unlink),
		Unchanged: len(p.Keep),
	}
}

// Unlinked returns the distinct fingerprints of the entries the plan
// unlinks, sorted. Removing a hardlinked entry touches the permissions of
// its object, so these are the objects to seal again afterwards.
func (p *Plan) Unlinked() []string {
	seen := make(map[string]struct{}, len(p.Unlink))
	fps := make([]string, 0, len(p.Unlink))
	for _, e := range p.Unlink {
		if _, ok := seen[e.Fingerprint]; ok {
			continue
		}
		seen[e.Fingerprint] = struct{}{}
		fps = append(fps, e.Fingerprint)
	}
	sort.Strings(fps)
	return fps
}

func sortByPath(entries []patch.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
}
