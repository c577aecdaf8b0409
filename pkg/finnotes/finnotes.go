// Package finnotes plans and mirrors the "financial statements and
// notes" data bundles: quarterly zips before the publisher's cut-over
// to monthly shipping, monthly zips after. A single date range may
// straddle the cut-over and must emit both shapes, in chronological
// order.
package finnotes

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dpriedel/edgarmirror/pkg/civil"
	"github.com/dpriedel/edgarmirror/pkg/httpfetch"
	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
)

// DefaultCutover is the boundary date: quarters ending before this
// date ship as quarterly bundles; calendar months from this date
// onward ship as monthly bundles. The publisher switched formats at
// the turn of 2024.
var DefaultCutover = civil.Date{Year: 2024, Month: 1, Day: 1}

// Entry is one planned bundle: its remote zip basename (resolved
// against the archive root by Planner) and the local subdirectory its
// contents are extracted into.
type Entry struct {
	ZipBasename string
	Subdir      string
}

const archiveRoot = "/Archives/edgar/Frictionlessdata"

// Remote returns the bundle's remote path.
func (e Entry) Remote() string {
	return archiveRoot + "/" + e.ZipBasename
}

// Plan walks dr one calendar month at a time, stopping at the first
// month that has not fully elapsed by dr.End. Each elapsed month after
// the cutover yields its own monthly Entry; each elapsed month before
// it yields its quarter's Entry, once per quarter. The quarter check
// is per month only: a quarter is planned as soon as one of its months
// in the range has ended, whether or not the whole quarter has.
func Plan(dr civil.DateRange, cutover civil.Date) []Entry {
	var entries []Entry
	emittedQuarters := make(map[civil.QuarterTuple]bool)

	for m := monthStart(dr.Begin); !m.After(dr.End); m = nextMonth(m) {
		end := monthEnd(m)
		if end.After(dr.End) {
			break // this and every later month are still open
		}
		q := civil.QuarterOf(m)
		if civil.QuarterEnd(q).Before(cutover) {
			if emittedQuarters[q] {
				continue
			}
			emittedQuarters[q] = true
			entries = append(entries, Entry{
				ZipBasename: fmt.Sprintf("%04dq%d_notes.zip", q.Year, q.Quarter),
				Subdir:      fmt.Sprintf("%04d_%d", q.Year, q.Quarter),
			})
		} else {
			entries = append(entries, Entry{
				ZipBasename: fmt.Sprintf("%04d_%02d_notes.zip", m.Year, m.Month),
				Subdir:      fmt.Sprintf("%04d_%02d", m.Year, m.Month),
			})
		}
	}
	return entries
}

func monthStart(d civil.Date) civil.Date { return civil.Date{Year: d.Year, Month: d.Month, Day: 1} }

func nextMonth(m civil.Date) civil.Date {
	if m.Month == 12 {
		return civil.Date{Year: m.Year + 1, Month: 1, Day: 1}
	}
	return civil.Date{Year: m.Year, Month: m.Month + 1, Day: 1}
}

func monthEnd(m civil.Date) civil.Date {
	return nextMonth(m).AddDays(-1)
}

// Planner mirrors the bundles Plan names to a local directory and
// extracts each into its target subdir, retaining the original zip.
type Planner struct {
	client *httpfetch.Client
	log    *zap.SugaredLogger
}

// NewPlanner constructs a Planner.
func NewPlanner(client *httpfetch.Client, log *zap.SugaredLogger) *Planner {
	return &Planner{client: client, log: log}
}

// MirrorRange downloads and extracts every bundle Plan names for dr
// into notesDir, honoring the same replace=false idempotence contract
// as the index/filing retrievers.
func (p *Planner) MirrorRange(ctx context.Context, dr civil.DateRange, notesDir string, replace bool) ([]Entry, error) {
	entries := Plan(dr, DefaultCutover)
	var done []Entry
	for _, e := range entries {
		zipPath := filepath.Join(notesDir, e.ZipBasename)
		subdir := filepath.Join(notesDir, e.Subdir)

		needDownload := replace
		if !needDownload {
			if _, err := os.Stat(zipPath); err != nil {
				needDownload = true
			}
		}
		if needDownload {
			if err := p.client.DownloadFile(ctx, e.Remote(), zipPath); err != nil {
				if mirrorerrors.IsNotFound(err) {
					if p.log != nil {
						p.log.Warnw("finnotes bundle not found upstream, skipping", "zip", e.ZipBasename)
					}
					continue
				}
				return done, err
			}
		}
		if err := extractZip(zipPath, subdir); err != nil {
			return done, err
		}
		done = append(done, e)
	}
	return done, nil
}

// extractZip expands the archive at zipPath into destDir, creating it
// if necessary. The source zip is left in place.
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return &mirrorerrors.ProtocolError{Reason: "opening finnotes zip " + zipPath, Err: err}
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return &mirrorerrors.IOError{Op: "mkdir", Path: destDir, Err: err}
	}

	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !isWithinDir(destDir, target) {
			return &mirrorerrors.ProtocolError{Reason: "zip entry escapes destination: " + f.Name}
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &mirrorerrors.IOError{Op: "mkdir", Path: target, Err: err}
			}
			continue
		}
		if err := extractOne(f, target); err != nil {
			return err
		}
	}
	return nil
}

func isWithinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasPrefix(rel, "..")
}

func filepathHasPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

func extractOne(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &mirrorerrors.IOError{Op: "mkdir", Path: filepath.Dir(target), Err: err}
	}
	src, err := f.Open()
	if err != nil {
		return &mirrorerrors.ProtocolError{Reason: "opening zip entry " + f.Name, Err: err}
	}
	defer src.Close()

	out, err := os.Create(target)
	if err != nil {
		return &mirrorerrors.IOError{Op: "create", Path: target, Err: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return &mirrorerrors.IOError{Op: "write", Path: target, Err: err}
	}
	return nil
}
