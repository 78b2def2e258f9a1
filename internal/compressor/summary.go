package compressor

import "math"

// Summary aggregates a set of compression results.
type Summary struct {
	Files          int     `json:"files"`
	Failed         int     `json:"failed"`
	OriginalSize   int64   `json:"original_size"`
	CompressedSize int64   `json:"compressed_size"`
	Saved          int64   `json:"saved"`
	SavedPercent   float64 `json:"saved_percent"`
}

// Summarize totals sizes across results.
func Summarize(results []CompressionResult) Summary {
	s := Summary{Files: len(results)}
	for _, r := range results {
		if r.Failed {
			s.Failed++
		}
		s.OriginalSize += r.OriginalSize
		s.CompressedSize += r.CompressedSize
	}
	s.Saved = s.OriginalSize - s.CompressedSize
	s.SavedPercent = PercentSaved(s.OriginalSize, s.CompressedSize)
	return s
}

// PercentSaved returns the saving rounded to two decimals, 0 for an empty original.
func PercentSaved(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return math.Round(float64(original-compressed)/float64(original)*10000) / 100
}
