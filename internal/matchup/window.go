package matchup

import (
	"math"
	"time"
)

const (
	DefaultMatchTolerance    = 1 * time.Hour
	DefaultLookbackTolerance = 4 * time.Hour
)

type Params struct {
	// MatchTolerance bounds the offset between a station timestamp and its
	// matched overpass for the row to count as a current match.
	MatchTolerance time.Duration
	// LookbackTolerance bounds the previous row's own offset for it to serve
	// as the anchor feeding a current match.
	LookbackTolerance time.Duration
}

func DefaultParams() Params {
	return Params{
		MatchTolerance:    DefaultMatchTolerance,
		LookbackTolerance: DefaultLookbackTolerance,
	}
}

// ClassifyWindows computes the two masks over a positionally ordered series
// of time offsets (station time minus matched overpass time, hours).
//
// A row is a current match when its own offset is within the match tolerance
// AND its immediate predecessor qualifies as an anchor. A row is an anchor
// when the following row is within the match tolerance AND the row's own
// offset is within the lookback tolerance. The two masks are reconciled
// against each other: an anchor without a following current match, or a
// current match with an out-of-policy predecessor, must not survive.
//
// Both bounds are inclusive. The first row can never be a current match and
// the last row can never be an anchor.
func ClassifyWindows(offsetHours []float64, p Params) (isCurrent, isPrevAnchor []bool) {
	n := len(offsetHours)
	matchH := p.MatchTolerance.Hours()
	lookbackH := p.LookbackTolerance.Hours()

	// Pass 1: per-row closeness to the matched overpass.
	within := make([]bool, n)
	for i := 0; i < n; i++ {
		within[i] = math.Abs(offsetHours[i]) <= matchH
	}

	// Pass 2: anchor eligibility looks one row ahead, then applies the
	// lookback bound to the anchor's own offset.
	isPrevAnchor = make([]bool, n)
	for i := 0; i < n-1; i++ {
		isPrevAnchor[i] = within[i+1] && math.Abs(offsetHours[i]) <= lookbackH
	}

	// A current match is only complete once its predecessor qualified.
	isCurrent = make([]bool, n)
	for i := 1; i < n; i++ {
		isCurrent[i] = within[i] && isPrevAnchor[i-1]
	}

	return isCurrent, isPrevAnchor
}
