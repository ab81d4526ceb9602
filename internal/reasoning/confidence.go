package reasoning

import (
	"regexp"
	"strconv"
)

var (
	confidenceMarker = regexp.MustCompile(`(?i)confidence[:\s]+(\d+(?:\.\d+)?)\s*%?`)
	percentMarker    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

// ExtractConfidence scans free text for a confidence marker and returns it
// normalized to [0,1]. Providers use both 0-100 and 0-1 scales; anything
// above 1 is treated as a percentage.
func ExtractConfidence(text string) (float64, bool) {
	m := confidenceMarker.FindStringSubmatch(text)
	if m == nil {
		m = percentMarker.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return Normalize(v), true
}

// Normalize maps a raw confidence value to [0,1], accepting 0-100 inputs.
func Normalize(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
