// Package enumerate turns a civil.DateRange into the finite,
// restartable, ascending sequences of dates or quarters the retrievers
// walk: one element per calendar day for daily-index work, or one
// representative date per touched quarter for quarterly work.
package enumerate

import "github.com/dpriedel/edgarmirror/pkg/civil"

// DateRangeEnumerator is a pure value type over a civil.DateRange.
type DateRangeEnumerator struct {
	r civil.DateRange
}

// New constructs an enumerator over r.
func New(r civil.DateRange) DateRangeEnumerator {
	return DateRangeEnumerator{r: r}
}

// ByDay returns every calendar day in the range, ascending.
func (e DateRangeEnumerator) ByDay() []civil.Date {
	var out []civil.Date
	for d := e.r.Begin; !d.After(e.r.End); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// ByQuarter returns one representative date per quarter touched by
// the range: the first day of the overlap between the range and that
// quarter. Three boundary cases fall out of the same loop without
// special-casing:
//
//   - Begin == End on a quarter boundary: one element.
//   - The range lies entirely within one quarter: one element (Begin).
//   - The range spans N quarters: N elements, contiguous, ascending.
func (e DateRangeEnumerator) ByQuarter() []civil.Date {
	var out []civil.Date
	beginQ := civil.QuarterOf(e.r.Begin)
	endQ := civil.QuarterOf(e.r.End)
	for q := beginQ; ; q = q.Next() {
		qBegin := civil.QuarterBegin(q)
		rep := qBegin
		if q == beginQ && e.r.Begin.After(qBegin) {
			rep = e.r.Begin
		}
		out = append(out, rep)
		if q == endQ {
			break
		}
	}
	return out
}
