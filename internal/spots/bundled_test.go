package spots

import "testing"

// TestLoadBundled verifies the shipped dataset parses, is tagged bundled,
// and carries the seed sample count.
func TestLoadBundled(t *testing.T) {
	records, err := LoadBundled("data/spots.json")
	if err != nil {
		t.Fatalf("LoadBundled failed: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 bundled spots, got %d", len(records))
	}

	for _, r := range records {
		if r.Provenance != ProvenanceBundled {
			t.Errorf("spot %s: expected bundled provenance, got %q", r.ID, r.Provenance)
		}
		if r.RatingSampleCount < 1 {
			t.Errorf("spot %s: expected sample count >= 1, got %d", r.ID, r.RatingSampleCount)
		}
		if r.Latitude == 0 || r.Longitude == 0 {
			t.Errorf("spot %s: missing coordinates", r.ID)
		}
	}

	if records[0].Name != "Bateshwar Temple Ruins" {
		t.Errorf("unexpected first spot: %s", records[0].Name)
	}
	if len(records[0].Comments) != 1 || records[0].Comments[0].Author != "Aditya" {
		t.Errorf("expected seed comment by Aditya, got %+v", records[0].Comments)
	}
}

// TestLoadBundled_MissingFile verifies a useful error for a bad path.
func TestLoadBundled_MissingFile(t *testing.T) {
	if _, err := LoadBundled("data/nope.json"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
