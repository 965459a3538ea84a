// Package gc decides which objects a manifest removal leaves unreferenced.
package gc

import (
	"fmt"
	"sort"

	"lvcs/internal/patch"
)

// Source enumerates the surviving manifests. Walk must skip the manifest
// tagged skip and stop as soon as fn returns false.
type Source interface {
	Walk(skip string, fn func(tag string, m patch.Manifest) bool) error
}

// Unreferenced returns the fingerprints of dropped that no manifest in src
// other than droppedTag references, sorted. Any error while reading the
// survivors aborts with a nil set so nothing is deleted speculatively.
func Unreferenced(dropped patch.Manifest, droppedTag string, src Source) ([]string, error) {
	candidates := make(map[string]struct{}, len(dropped))
	for _, fp := range dropped.Fingerprints() {
		candidates[fp] = struct{}{}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	err := src.Walk(droppedTag, func(tag string, m patch.Manifest) bool {
		for fp := range candidates {
			if _, used := m[fp]; used {
				delete(candidates, fp)
			}
		}
		return len(candidates) > 0
	})
	if err != nil {
		return nil, fmt.Errorf("scanning surviving patches: %w", err)
	}

	result := make([]string, 0, len(candidates))
	for fp := range candidates {
		result = append(result, fp)
	}
	sort.Strings(result)
	return result, nil
}
