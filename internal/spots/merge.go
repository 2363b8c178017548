package spots

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldLabel normalizes a category label for comparison and color lookup.
// Unicode case folding rather than ASCII lowercasing, since labels are
// free-form user input.
func foldLabel(label string) string {
	return cases.Fold().String(strings.TrimSpace(label))
}

// Merge combines the three spot sources into one id-unique view:
// bundled first (order preserved), then persisted records not already
// present, then pending records whose id is not yet known. A pending spot
// whose id appears in the persisted set has been confirmed by the store,
// so the persisted copy wins and the pending one is dropped.
//
// Merge is a pure function and idempotent: merging its own output with
// empty persisted/pending lists reproduces the output.
func Merge(bundled, persisted, pending []SpotRecord) []SpotRecord {
	merged := make([]SpotRecord, 0, len(bundled)+len(persisted)+len(pending))
	seen := make(map[string]struct{}, len(bundled)+len(persisted)+len(pending))

	appendNew := func(list []SpotRecord) {
		for _, s := range list {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			seen[s.ID] = struct{}{}
			merged = append(merged, s)
		}
	}

	appendNew(bundled)
	appendNew(persisted)
	appendNew(pending)
	return merged
}

// FilterByLabel returns the spots whose category label equals the given
// label under case folding. An empty label means no filter.
func FilterByLabel(list []SpotRecord, label string) []SpotRecord {
	if strings.TrimSpace(label) == "" {
		return list
	}
	want := foldLabel(label)
	out := make([]SpotRecord, 0, len(list))
	for _, s := range list {
		if foldLabel(s.CategoryLabel) == want {
			out = append(out, s)
		}
	}
	return out
}
