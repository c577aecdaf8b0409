// Package pathplan contains the pure functions that map a civil date
// (or quarter) to the exact remote archive path and its mirrored local
// counterpart. Nothing here performs I/O; it only knows the naming
// conventions listed in the archive layout.
package pathplan

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dpriedel/edgarmirror/pkg/civil"
	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
)

// RemotePath is a POSIX-style path rooted under the archive prefix
// "/Archives/edgar". The prefix is a fixed constant; it is not
// configurable.
type RemotePath string

// LocalPath is a filesystem path under the configured local root.
type LocalPath string

const defaultPrefix = "/Archives/edgar"

// DailyIndexPath returns the canonical daily "form" index path for d,
// with the plain ".idx" suffix (see DailyIndexPathGz for ".idx.gz").
func DailyIndexPath(d civil.Date) RemotePath {
	return dailyPath(d, "form", false)
}

// DailyIndexPathGz is DailyIndexPath with the .gz suffix.
func DailyIndexPathGz(d civil.Date) RemotePath {
	return dailyPath(d, "form", true)
}

// DailyMasterPath returns the canonical daily "master" index path for
// d.
func DailyMasterPath(d civil.Date) RemotePath {
	return dailyPath(d, "master", false)
}

// DailyMasterPathGz is DailyMasterPath with the .gz suffix.
func DailyMasterPathGz(d civil.Date) RemotePath {
	return dailyPath(d, "master", true)
}

func dailyPath(d civil.Date, basename string, gz bool) RemotePath {
	q := civil.QuarterOf(d)
	suffix := ".idx"
	if gz {
		suffix = ".idx.gz"
	}
	return RemotePath(fmt.Sprintf("%s/%04d/QTR%d/%s.%s%s", defaultPrefix, q.Year, q.Quarter, basename, d.Compact(), suffix))
}

// QuarterlyIndexPath returns the canonical quarterly "form.zip" bundle
// path for the quarter containing d.
func QuarterlyIndexPath(d civil.Date) RemotePath {
	q := civil.QuarterOf(d)
	return RemotePath(fmt.Sprintf("%s/%04d/QTR%d/form.zip", defaultPrefix, q.Year, q.Quarter))
}

// QuarterDirectory returns the remote directory that holds a given
// quarter's index files, for listing purposes.
func QuarterDirectory(q civil.QuarterTuple) RemotePath {
	return RemotePath(fmt.Sprintf("%s/%04d/QTR%d/", defaultPrefix, q.Year, q.Quarter))
}

// QuarterlyIndexFilePath returns the path of the plain-text quarterly
// index product (basename is whichever of "master.idx"/"form.idx" the
// caller probed via PreferredQuarterlyBasenames against the quarter's
// directory listing). This is the file IndexParser actually reads for
// quarterly mode; QuarterlyIndexPath's "form.zip" is a separate,
// compressed bundle of the same quarter's full filing list.
func QuarterlyIndexFilePath(q civil.QuarterTuple, basename string) RemotePath {
	return RemotePath(fmt.Sprintf("%s/%04d/QTR%d/%s", defaultPrefix, q.Year, q.Quarter, basename))
}

// localBasename returns remote's basename with any ".gz" suffix
// stripped: httpfetch.Client.DownloadFile transparently decompresses
// gzip bodies, so the on-disk artifact is never gzip-compressed even
// when the remote name is.
func localBasename(remote RemotePath) string {
	base := path.Base(string(remote))
	if strings.HasSuffix(base, ".gz") {
		base = strings.TrimSuffix(base, ".gz")
	}
	return base
}

// ToLocalFlat mirrors remote into dir, flattening to a single
// directory: <dir>/<basename>.
func ToLocalFlat(remote RemotePath, dir string) LocalPath {
	return LocalPath(filepath.Join(dir, localBasename(remote)))
}

// ToLocalHierarchical mirrors remote into dir, preserving the
// YYYY/QTRn structure: <dir>/YYYY/QTRn/<basename>.
func ToLocalHierarchical(remote RemotePath, dir string, q civil.QuarterTuple) LocalPath {
	return LocalPath(filepath.Join(dir, fmt.Sprintf("%04d", q.Year), fmt.Sprintf("QTR%d", q.Quarter), localBasename(remote)))
}

// QuarterFromRemotePath recovers the (year, quarter) tuple embedded in
// an index RemotePath's "/YYYY/QTRn/" segment, so batch mirroring can
// lay files out hierarchically without threading a separate QuarterTuple
// alongside every path.
func QuarterFromRemotePath(remote RemotePath) (civil.QuarterTuple, bool) {
	parts := strings.Split(strings.Trim(string(remote), "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		year, ok := parseYearSegment(parts[i])
		if !ok {
			continue
		}
		quarter, ok := parseQuarterSegment(parts[i+1])
		if !ok {
			continue
		}
		return civil.QuarterTuple{Year: year, Quarter: quarter}, true
	}
	return civil.QuarterTuple{}, false
}

func parseYearSegment(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1000 {
		return 0, false
	}
	return n, true
}

func parseQuarterSegment(s string) (int, bool) {
	if !strings.HasPrefix(s, "QTR") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "QTR"))
	if err != nil || n < 1 || n > 4 {
		return 0, false
	}
	return n, true
}

// ValidateNotFuture rejects a date later than today.
func ValidateNotFuture(d civil.Date) error {
	if d.After(civil.Today()) {
		return &mirrorerrors.OutOfRange{Reason: fmt.Sprintf("date %s is in the future", d)}
	}
	return nil
}

// NearestAvailableDate picks, from a directory listing of candidate
// basenames for a single quarter, the date of the file whose name
// encodes the greatest date <= target. Returns mirrorerrors.NotFound
// if no candidate qualifies.
//
// basenames are expected in one of the forms this archive uses for
// daily products: "form.YYYYMMDD.idx", "form.YYYYMMDD.idx.gz",
// "master.YYYYMMDD.idx", "master.YYYYMMDD.idx.gz".
func NearestAvailableDate(target civil.Date, basenames []string) (civil.Date, error) {
	var candidates []civil.Date
	for _, name := range basenames {
		d, ok := extractDate(name)
		if !ok {
			continue
		}
		if d.After(target) {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return civil.Date{}, &mirrorerrors.NotFound{Path: fmt.Sprintf("index file nearest %s", target)}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })
	return candidates[len(candidates)-1], nil
}

func extractDate(basename string) (civil.Date, bool) {
	base := basename
	for _, ext := range []string{".gz", ".idx"} {
		if len(base) > len(ext) && base[len(base)-len(ext):] == ext {
			base = base[:len(base)-len(ext)]
		}
	}
	dot := -1
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			dot = i
			break
		}
	}
	if dot == -1 || dot+1+8 != len(base) {
		return civil.Date{}, false
	}
	d, err := civil.ParseCompact(base[dot+1:])
	if err != nil {
		return civil.Date{}, false
	}
	return d, true
}

// PreferredQuarterlyBasenames returns the candidate basenames for a
// quarterly index product, in probe order: master.idx is preferred
// when the server carries it (newer archives), falling back to
// form.idx (the older archives' only option). Callers list the
// quarter directory and pick the first name present, never hard-coding
// either.
func PreferredQuarterlyBasenames() []string {
	return []string{"master.idx", "form.idx"}
}
