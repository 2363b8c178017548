package spots

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadBundled reads the bundled spots dataset from the given path. Bundled
// records are loaded once at startup, tagged with bundled provenance, and
// never mutated afterwards.
func LoadBundled(path string) ([]SpotRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read bundled spots %s: %w", path, err)
	}

	var records []SpotRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to parse bundled spots %s: %w", path, err)
	}

	for i := range records {
		records[i].Provenance = ProvenanceBundled
		if records[i].RatingSampleCount < 1 {
			records[i].RatingSampleCount = 1
		}
	}
	return records, nil
}
