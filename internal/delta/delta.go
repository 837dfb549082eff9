// Package delta computes the minimal set of release and alias changes that
// brings a stored artist in line with freshly fetched provider data.
package delta

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sydlexius/tributary/internal/dto"
)

// Determine diffs local against remote state.
//
// Releases are matched by identity key. Each remote release consumes at most
// one stored release with the same key (active first, then most recently
// updated); an unmatched remote release is added, a matched one is updated
// when its fingerprint differs or the stored release was inactive. Stored
// releases left unmatched and still active are removed. Releases without a
// usable key are ignored on both sides.
func Determine(local LocalState, remote RemoteState) Result {
	return Result{
		Releases: releaseDelta(local.Releases, remote.Releases),
		Aliases:  AliasDiff(local.Aliases, remote.Aliases),
	}
}

func releaseDelta(local []ReleaseSnapshot, remote []dto.ProviderRelease) ReleaseDelta {
	buckets := make(map[Key][]ReleaseSnapshot)
	var keys []Key
	for _, s := range local {
		k, ok := SnapshotKey(s)
		if !ok {
			continue
		}
		if _, seen := buckets[k]; !seen {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], s)
	}
	for _, k := range keys {
		slices.SortStableFunc(buckets[k], CompareSnapshots)
	}

	var d ReleaseDelta
	seen := make(map[Key]struct{}, len(remote))
	for _, r := range remote {
		k, ok := ReleaseKey(r)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		bucket := buckets[k]
		if len(bucket) == 0 {
			d.Added = append(d.Added, r)
			continue
		}
		before := bucket[0]
		buckets[k] = bucket[1:]
		if !before.Active() || SnapshotFingerprint(before) != ReleaseFingerprint(r) {
			d.Updated = append(d.Updated, UpdatedRelease{Before: before, After: r})
		}
	}

	for _, k := range keys {
		for _, s := range buckets[k] {
			if s.Active() {
				d.Removed = append(d.Removed, s)
			}
		}
	}
	slices.SortStableFunc(d.Removed, func(a, b ReleaseSnapshot) int {
		return strings.Compare(a.ID, b.ID)
	})
	return d
}

// CompareSnapshots orders stored duplicates of one key: active first, then
// most recently updated, then by ID.
func CompareSnapshots(a, b ReleaseSnapshot) int {
	if a.Active() != b.Active() {
		if a.Active() {
			return -1
		}
		return 1
	}
	switch {
	case a.UpdatedAt != nil && b.UpdatedAt != nil:
		if c := b.UpdatedAt.Compare(*a.UpdatedAt); c != 0 {
			return c
		}
	case a.UpdatedAt != nil:
		return -1
	case b.UpdatedAt != nil:
		return 1
	}
	return cmp.Compare(a.ID, b.ID)
}

// AliasDiff compares two alias lists case-insensitively. Each side is
// deduplicated keeping the first spelling; results are sorted by their
// case-folded form.
func AliasDiff(local, remote []string) AliasDelta {
	fold := cases.Fold()
	index := func(list []string) (map[string]string, []string) {
		m := make(map[string]string, len(list))
		var order []string
		for _, a := range list {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			k := fold.String(a)
			if _, ok := m[k]; ok {
				continue
			}
			m[k] = a
			order = append(order, k)
		}
		return m, order
	}
	lm, lorder := index(local)
	rm, rorder := index(remote)

	var d AliasDelta
	slices.Sort(rorder)
	for _, k := range rorder {
		if _, ok := lm[k]; !ok {
			d.Added = append(d.Added, rm[k])
		}
	}
	slices.Sort(lorder)
	for _, k := range lorder {
		if _, ok := rm[k]; !ok {
			d.Removed = append(d.Removed, lm[k])
		}
	}
	return d
}
