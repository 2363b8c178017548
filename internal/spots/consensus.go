package spots

// Fold incorporates one newly submitted rating into a spot's consensus.
// Each dimension moves to the weighted mean of the old value (weight n,
// where n is the current sample count) and the submission (weight 1), and
// the sample count advances by exactly one. The result is clamped to
// [0,5] per dimension even though inputs are validated, so a corrupt
// stored value can never push the mean out of range.
//
// Applied sequentially, Fold reproduces the batch average over all
// submissions from the seed sample.
func Fold(spot SpotRecord, submitted Ratings) (SpotRecord, error) {
	if err := validateRatings(submitted); err != nil {
		return SpotRecord{}, err
	}

	n := float64(spot.RatingSampleCount)
	out := spot
	out.Ratings = Ratings{
		Uniqueness: clampRating((spot.Ratings.Uniqueness*n + submitted.Uniqueness) / (n + 1)),
		Vibe:       clampRating((spot.Ratings.Vibe*n + submitted.Vibe) / (n + 1)),
		Safety:     clampRating((spot.Ratings.Safety*n + submitted.Safety) / (n + 1)),
		Crowd:      clampRating((spot.Ratings.Crowd*n + submitted.Crowd) / (n + 1)),
	}
	out.RatingSampleCount = spot.RatingSampleCount + 1
	return out, nil
}

func validateRatings(r Ratings) error {
	for _, dim := range []struct {
		name  string
		value float64
	}{
		{"uniqueness", r.Uniqueness},
		{"vibe", r.Vibe},
		{"safety", r.Safety},
		{"crowd", r.Crowd},
	} {
		if dim.value < 0 || dim.value > 5 {
			return &ValidationError{Field: dim.name, Reason: "rating must be between 0 and 5"}
		}
	}
	return nil
}

func clampRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}

// clampRatings clamps every dimension; used when seeding a new record from
// client-supplied initial ratings.
func clampRatings(r Ratings) Ratings {
	return Ratings{
		Uniqueness: clampRating(r.Uniqueness),
		Vibe:       clampRating(r.Vibe),
		Safety:     clampRating(r.Safety),
		Crowd:      clampRating(r.Crowd),
	}
}
