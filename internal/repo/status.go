package repo

import (
	"context"
	"sort"

	"lvcs/internal/patch"
	"lvcs/internal/pool"
)

// Status compares the working tree with the current patch.
type Status struct {
	Current string
	Missing []string // in the patch, absent from the tree
	Extra   []string // in the tree, not in the patch
}

func (s *Status) Clean() bool {
	return len(s.Missing) == 0 && len(s.Extra) == 0
}

func (r *Repository) Status() (*Status, error) {
	current, err := r.Current()
	if err != nil {
		return nil, err
	}

	st := &Status{Current: current}
	expected := map[string]string{}
	if current != "" {
		m, err := r.Patches.Load(current)
		if err != nil {
			return nil, err
		}
		expected = m.ByPath()
	}

	present, err := r.Workspace.Scan()
	if err != nil {
		return nil, err
	}
	for _, path := range present {
		if _, ok := expected[path]; ok {
			delete(expected, path)
			continue
		}
		st.Extra = append(st.Extra, path)
	}
	for path := range expected {
		st.Missing = append(st.Missing, path)
	}
	sort.Strings(st.Missing)
	return st, nil
}

// VerifyReport lists integrity problems found in the store.
type VerifyReport struct {
	Checked   int
	Corrupt   []string // bytes no longer match the fingerprint
	Unindexed []string // no metadata record
	Orphaned  []string // referenced by no manifest
	Dangling  []string // referenced by a manifest but not stored
}

func (v *VerifyReport) OK() bool {
	return len(v.Corrupt) == 0 && len(v.Unindexed) == 0 && len(v.Orphaned) == 0 && len(v.Dangling) == 0
}

// Verify re-hashes every stored object.
func (r *Repository) Verify(ctx context.Context) (*VerifyReport, error) {
	fingerprints, err := r.Safe.List()
	if err != nil {
		return nil, err
	}

	r.progress.Step(1, 1, "Verifying objects...")
	sums, err := pool.Map(ctx, r.pool, fingerprints, func(fp string) (string, error) {
		rc, err := r.Safe.Open(fp)
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return r.hasher.HashReader(rc)
	}, r.progress.Start(len(fingerprints)))
	if err != nil {
		return nil, err
	}

	refs, err := r.Referenced()
	if err != nil {
		return nil, err
	}

	indexed, err := r.Safe.Indexed()
	if err != nil {
		return nil, err
	}
	records := make(map[string]struct{}, len(indexed))
	for _, fp := range indexed {
		records[fp] = struct{}{}
	}

	report := &VerifyReport{Checked: len(fingerprints)}
	for i, fp := range fingerprints {
		if _, ok := refs[fp]; ok {
			delete(refs, fp)
		} else {
			report.Orphaned = append(report.Orphaned, fp)
		}
		if sums[i] != fp {
			report.Corrupt = append(report.Corrupt, fp)
		}
		if _, ok := records[fp]; !ok {
			report.Unindexed = append(report.Unindexed, fp)
		}
	}
	for fp := range refs {
		report.Dangling = append(report.Dangling, fp)
	}
	sort.Strings(report.Dangling)
	return report, nil
}

// Referenced returns every fingerprint named by at least one manifest.
func (r *Repository) Referenced() (map[string]struct{}, error) {
	refs := map[string]struct{}{}
	err := r.Patches.Walk("", func(_ string, m patch.Manifest) bool {
		for fp := range m {
			refs[fp] = struct{}{}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
