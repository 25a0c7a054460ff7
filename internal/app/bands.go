package app

import (
	"errors"
	"fmt"
)

// Band is one row of the closing-remark table: scores at or above MinScore
// earn Label.
type Band struct {
	MinScore int
	Label    string
}

// DefaultBands mirrors the remarks the quiz has always used.
func DefaultBands() []Band {
	return []Band{
		{MinScore: 4, Label: "Excellent work!"},
		{MinScore: 3, Label: "Good job!"},
		{MinScore: 0, Label: "Keep practicing!"},
	}
}

var errInvalidBands = errors.New("invalid score bands")

// ValidateBands requires strictly descending thresholds ending at zero, so
// every band is reachable and every score has a band.
func ValidateBands(bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: empty table", errInvalidBands)
	}
	for i, b := range bands {
		if b.Label == "" {
			return fmt.Errorf("%w: band %d has no label", errInvalidBands, i)
		}
		if i > 0 && b.MinScore >= bands[i-1].MinScore {
			return fmt.Errorf("%w: thresholds must strictly descend", errInvalidBands)
		}
	}
	if last := bands[len(bands)-1]; last.MinScore != 0 {
		return fmt.Errorf("%w: last band must start at 0", errInvalidBands)
	}
	return nil
}

// BandFor picks the first band whose threshold score reaches.
func BandFor(bands []Band, score int) string {
	for _, b := range bands {
		if score >= b.MinScore {
			return b.Label
		}
	}
	return bands[len(bands)-1].Label
}
