// Package indexparser reads fixed-column EDGAR index files and
// produces filtered FilingsPlan values: form-type and CIK allow-lists
// are applied, a max cap is applied to the form-ordered concatenation,
// and filings are de-duplicated on their remote path regardless of how
// many index files reference them.
package indexparser

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
	"github.com/dpriedel/edgarmirror/pkg/pathplan"
)

// IndexEntry is one parsed row of an index file.
type IndexEntry struct {
	FormType    string
	CompanyName string
	CIK         string
	FilingDate  time.Time
	FilingPath  pathplan.RemotePath
}

// FilingsPlan maps form-type to an ordered, duplicate-free list of
// RemotePaths.
type FilingsPlan map[string][]pathplan.RemotePath

// Filter controls which entries an index file contributes to a plan.
type Filter struct {
	// Forms is the caller's form-type allow-list, exact match on the
	// normalized form type. A nil/empty slice means "allow all forms
	// seen."
	Forms []string
	// CIKs, if non-empty, is applied after form matching.
	CIKs []string
	// Max caps the concatenated, form-ordered output. Zero means
	// unbounded.
	Max int
}

func (f Filter) formsAllowed() map[string]bool {
	if len(f.Forms) == 0 {
		return nil
	}
	m := make(map[string]bool, len(f.Forms))
	for _, form := range f.Forms {
		m[form] = true
	}
	return m
}

func (f Filter) ciksAllowed() map[string]bool {
	if len(f.CIKs) == 0 {
		return nil
	}
	m := make(map[string]bool, len(f.CIKs))
	for _, cik := range f.CIKs {
		m[NormalizeCIK(cik)] = true
	}
	return m
}

// NormalizeCIK zero-pads a CIK to 10 decimal digits.
func NormalizeCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	cik = strings.TrimLeft(cik, "0")
	if cik == "" {
		cik = "0"
	}
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}

// ParseAll parses every index file in contents (the full text of each
// already-fetched file, one string per file) applying filter, and returns
// the combined FilingsPlan plus the flat, form-ordered, deduplicated,
// max-capped entry list.
func ParseAll(contents []string, filter Filter) (FilingsPlan, []IndexEntry, error) {
	seen := make(map[pathplan.RemotePath]bool)
	byForm := make(map[string][]IndexEntry)
	var formOrder []string
	formSeenOrder := make(map[string]bool)

	allowedForms := filter.formsAllowed()
	allowedCIKs := filter.ciksAllowed()

	for _, content := range contents {
		entries, err := parseOne(content)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range entries {
			if allowedForms != nil && !allowedForms[e.FormType] {
				continue
			}
			if allowedCIKs != nil && !allowedCIKs[NormalizeCIK(e.CIK)] {
				continue
			}
			if seen[e.FilingPath] {
				continue
			}
			seen[e.FilingPath] = true

			if !formSeenOrder[e.FormType] {
				formSeenOrder[e.FormType] = true
				formOrder = append(formOrder, e.FormType)
			}
			byForm[e.FormType] = append(byForm[e.FormType], e)
		}
	}

	// Order the output by the caller's form list when one was given
	// (§9: "apply max to the concatenated, form-ordered output" where
	// form-order = order of the input form list); otherwise by first
	// appearance in the index files.
	order := formOrder
	if len(filter.Forms) > 0 {
		order = filter.Forms
	}

	var flat []IndexEntry
	plan := make(FilingsPlan)
	for _, form := range order {
		entries := byForm[form]
		if len(entries) == 0 {
			continue
		}
		for _, e := range entries {
			plan[form] = append(plan[form], e.FilingPath)
		}
		flat = append(flat, entries...)
	}

	if filter.Max > 0 && len(flat) > filter.Max {
		flat = flat[:filter.Max]
		plan = rebuildPlan(flat)
	}

	return plan, flat, nil
}

func rebuildPlan(entries []IndexEntry) FilingsPlan {
	plan := make(FilingsPlan)
	for _, e := range entries {
		plan[e.FormType] = append(plan[e.FormType], e.FilingPath)
	}
	return plan
}

// parseOne parses a single index file's text. The file is a header
// block, a separator line of dashed column markers, and one data row
// per filing. The separator line's dash-run boundaries give the fixed
// column positions used to slice every data row — robust to company
// names containing embedded whitespace, which a naive whitespace split
// would break.
func parseOne(content string) ([]IndexEntry, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cols []int
	var entries []IndexEntry
	inBody := false

	for scanner.Scan() {
		line := scanner.Text()
		if !inBody {
			if isSeparatorLine(line) {
				cols = columnStarts(line)
				inBody = true
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, ok := parseRow(line, cols)
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, &mirrorerrors.ProtocolError{Reason: "reading index file", Err: err}
	}
	return entries, nil
}

func isSeparatorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 5 {
		return false
	}
	for _, r := range trimmed {
		if r != '-' && r != ' ' {
			return false
		}
	}
	return strings.Contains(trimmed, "---")
}

// columnStarts returns the byte offset of each dash-run in the
// separator line, i.e. the fixed start column of each field.
func columnStarts(sep string) []int {
	var starts []int
	inRun := false
	for i, r := range sep {
		if r == '-' {
			if !inRun {
				starts = append(starts, i)
				inRun = true
			}
		} else {
			inRun = false
		}
	}
	return starts
}

func parseRow(line string, cols []int) (IndexEntry, bool) {
	if len(cols) < 5 {
		return IndexEntry{}, false
	}
	field := func(i int) string {
		start := cols[i]
		end := len(line)
		if i+1 < len(cols) {
			end = cols[i+1]
		}
		if start >= len(line) {
			return ""
		}
		if end > len(line) {
			end = len(line)
		}
		return strings.TrimSpace(line[start:end])
	}

	formType := field(0)
	company := field(1)
	cik := field(2)
	dateStr := field(3)
	filename := field(4)

	if formType == "" || filename == "" {
		return IndexEntry{}, false
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return IndexEntry{}, false
	}
	if !strings.HasPrefix(filename, "/") {
		filename = "/" + filename
	}
	return IndexEntry{
		FormType:    formType,
		CompanyName: company,
		CIK:         NormalizeCIK(cik),
		FilingDate:  date,
		FilingPath:  pathplan.RemotePath(filename),
	}, true
}

// ReadAll reads r fully into a string, wrapping read errors as
// ProtocolError.
func ReadAll(r io.Reader) (string, error) {
	sb := &strings.Builder{}
	if _, err := io.Copy(sb, r); err != nil {
		return "", &mirrorerrors.ProtocolError{Reason: "reading index content", Err: err}
	}
	return sb.String(), nil
}

// SortedFormNames returns the form-type keys of plan in lexical order,
// a convenience for callers that need deterministic directory
// creation order.
func SortedFormNames(plan FilingsPlan) []string {
	names := make([]string, 0, len(plan))
	for name := range plan {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
