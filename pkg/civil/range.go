package civil

import "github.com/dpriedel/edgarmirror/pkg/mirrorerrors"

// DateRange is a closed interval [Begin, End] of civil dates.
// Invariants enforced at construction: Begin <= End, End <= today.
type DateRange struct {
	Begin Date
	End   Date
}

// NewDateRange validates and constructs a DateRange.
func NewDateRange(begin, end Date) (DateRange, error) {
	if end.Before(begin) {
		return DateRange{}, &mirrorerrors.InvalidInput{Field: "date range", Reason: "end precedes begin"}
	}
	if end.After(Today()) {
		return DateRange{}, &mirrorerrors.OutOfRange{Reason: "end date is in the future"}
	}
	return DateRange{Begin: begin, End: end}, nil
}

// Contains reports whether d lies within the closed range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Begin) && !d.After(r.End)
}

// QuartersTouched returns the number of distinct quarters the range
// intersects.
func (r DateRange) QuartersTouched() int {
	n := 0
	for q := QuarterOf(r.Begin); ; q = q.Next() {
		n++
		if q == QuarterOf(r.End) {
			break
		}
	}
	return n
}
