package seo

import (
	"math"
	"unicode/utf16"
)

// SyntheticRating is a fabricated, slug-derived product score. It is not based
// on any real review data and only feeds the Product structured data block.
type SyntheticRating struct {
	Value       float64
	ReviewCount int
}

// SyntheticRatingFor hashes the slug's UTF-16 code units with a wrapping
// 32-bit h*31+c rolling hash. Value falls in [4.0, 4.9] and ReviewCount in
// [10, 99]. The result is stable for a given slug.
func SyntheticRatingFor(slug string) SyntheticRating {
	var h int32
	for _, unit := range utf16.Encode([]rune(slug)) {
		h = (h << 5) - h + int32(unit)
	}

	value := 4.0 + float64(absInt32(h%10))/10
	return SyntheticRating{
		Value:       math.Round(value*10) / 10,
		ReviewCount: 10 + int(absInt32(h%90)),
	}
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
