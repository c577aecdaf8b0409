// Package retriever composes pathplan with httpfetch to mirror index
// files and filings to disk: IndexRetriever (daily and quarterly
// variants) finds and validates remote index files, FilingRetriever
// consumes an indexparser.FilingsPlan and mirrors the filings it
// names. Both expose idempotent, replace-aware downloads and a
// concurrent variant built on workerpool.
package retriever

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/dpriedel/edgarmirror/pkg/civil"
	"github.com/dpriedel/edgarmirror/pkg/enumerate"
	"github.com/dpriedel/edgarmirror/pkg/httpfetch"
	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
	"github.com/dpriedel/edgarmirror/pkg/pathplan"
	"github.com/dpriedel/edgarmirror/pkg/workerpool"
)

// IndexKind selects which index product a retriever mirrors.
type IndexKind int

const (
	Daily IndexKind = iota
	Quarterly
)

// IndexRetriever mirrors daily or quarterly index files.
type IndexRetriever struct {
	client *httpfetch.Client
	kind   IndexKind
	log    *zap.SugaredLogger
}

// NewIndexRetriever constructs a retriever of the given kind.
func NewIndexRetriever(client *httpfetch.Client, kind IndexKind, log *zap.SugaredLogger) *IndexRetriever {
	return &IndexRetriever{client: client, kind: kind, log: log}
}

// FindRemoteIndexFileNameNearestDate lists the quarter directory
// containing d, finds the greatest date <= d encoded in any listed
// daily index name (form or master, plain or .gz), and returns that
// actual date with the plain form.YYYYMMDD.idx path for it. The
// returned path is built from the date, not taken from the listing, so
// it is the form path even when the listing only shows another
// product for that date. Daily retrievers only.
func (r *IndexRetriever) FindRemoteIndexFileNameNearestDate(ctx context.Context, d civil.Date) (pathplan.RemotePath, civil.Date, error) {
	if r.kind != Daily {
		return "", civil.Date{}, &mirrorerrors.AssertionViolation{Reason: "nearest-date lookup is daily-only"}
	}
	if err := pathplan.ValidateNotFuture(d); err != nil {
		return "", civil.Date{}, err
	}

	q := civil.QuarterOf(d)
	names, err := r.client.ListDirectory(ctx, string(pathplan.QuarterDirectory(q)))
	if err != nil {
		return "", civil.Date{}, err
	}

	actual, err := pathplan.NearestAvailableDate(d, names)
	if err != nil {
		return "", civil.Date{}, err
	}
	return pathplan.DailyIndexPath(actual), actual, nil
}

// FindRemoteIndexFileNamesForDateRange walks r in the retriever's
// natural granularity (day-by-day for Daily, quarter-by-quarter for
// Quarterly) and returns the sorted, duplicate-free list of paths the
// server's directory listings confirmed exist: the day's form index
// (Daily) or the quarter's master.idx/form.idx (Quarterly).
func (r *IndexRetriever) FindRemoteIndexFileNamesForDateRange(ctx context.Context, dr civil.DateRange) ([]pathplan.RemotePath, error) {
	switch r.kind {
	case Daily:
		return r.findDailyRange(ctx, dr)
	case Quarterly:
		return r.findQuarterlyRange(ctx, dr)
	default:
		return nil, &mirrorerrors.AssertionViolation{Reason: "unknown IndexKind"}
	}
}

func (r *IndexRetriever) findDailyRange(ctx context.Context, dr civil.DateRange) ([]pathplan.RemotePath, error) {
	days := enumerate.New(dr).ByDay()
	var out []pathplan.RemotePath
	for _, d := range days {
		q := civil.QuarterOf(d)
		names, err := r.client.ListDirectory(ctx, string(pathplan.QuarterDirectory(q)))
		if err != nil {
			if mirrorerrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		switch {
		case hasBasename(names, "form."+d.Compact()+".idx"):
			out = append(out, pathplan.DailyIndexPath(d))
		case hasBasename(names, "form."+d.Compact()+".idx.gz"):
			out = append(out, pathplan.DailyIndexPathGz(d))
		default:
			continue // gap day: weekend/holiday with no upstream file
		}
	}
	return out, nil
}

func hasBasename(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// findQuarterlyRange resolves one representative date per quarter
// touched by dr to the plain-text quarterly index file the server
// actually serves for that quarter (§9's open question: probe, prefer
// master.idx, fall back to form.idx, never hard-code either).
func (r *IndexRetriever) findQuarterlyRange(ctx context.Context, dr civil.DateRange) ([]pathplan.RemotePath, error) {
	reps := enumerate.New(dr).ByQuarter()
	out := make([]pathplan.RemotePath, 0, len(reps))
	for _, d := range reps {
		q := civil.QuarterOf(d)
		basename, err := r.resolveQuarterlyBasename(ctx, q)
		if err != nil {
			if mirrorerrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, pathplan.QuarterlyIndexFilePath(q, basename))
	}
	return out, nil
}

// resolveQuarterlyBasename probes a quarter directory for whichever of
// master.idx/form.idx the server actually serves, per §9's open
// question: never hard-code one, always probe and prefer master.idx.
func (r *IndexRetriever) resolveQuarterlyBasename(ctx context.Context, q civil.QuarterTuple) (string, error) {
	names, err := r.client.ListDirectory(ctx, string(pathplan.QuarterDirectory(q)))
	if err != nil {
		return "", err
	}
	for _, candidate := range pathplan.PreferredQuarterlyBasenames() {
		if hasBasename(names, candidate) {
			return candidate, nil
		}
	}
	return "", &mirrorerrors.NotFound{Path: string(pathplan.QuarterDirectory(q)) + "{master,form}.idx"}
}

// CopyRemoteIndexFileTo mirrors remote into a flat destination
// directory. If replace is false and the destination already exists,
// the call is a no-op and the existing path is returned untouched —
// including its mtime, which is part of the observable idempotence
// contract.
func (r *IndexRetriever) CopyRemoteIndexFileTo(ctx context.Context, remote pathplan.RemotePath, dir string, replace bool) (pathplan.LocalPath, error) {
	local := pathplan.ToLocalFlat(remote, dir)
	return r.copyTo(ctx, remote, local, replace)
}

// HierarchicalCopyRemoteIndexFileTo mirrors remote into dir preserving
// the YYYY/QTRn structure.
func (r *IndexRetriever) HierarchicalCopyRemoteIndexFileTo(ctx context.Context, remote pathplan.RemotePath, dir string, q civil.QuarterTuple, replace bool) (pathplan.LocalPath, error) {
	local := pathplan.ToLocalHierarchical(remote, dir, q)
	return r.copyTo(ctx, remote, local, replace)
}

func (r *IndexRetriever) copyTo(ctx context.Context, remote pathplan.RemotePath, local pathplan.LocalPath, replace bool) (pathplan.LocalPath, error) {
	if !replace {
		if _, err := os.Stat(string(local)); err == nil {
			return local, nil
		}
	}
	if err := r.client.DownloadFile(ctx, string(remote), string(local)); err != nil {
		if mirrorerrors.IsNotFound(err) {
			if r.log != nil {
				r.log.Warnw("index file not found upstream, skipping", "remote", remote)
			}
		}
		return "", err
	}
	return local, nil
}

// CopyIndexFilesForDateRangeTo mirrors every path in list to dir
// sequentially, in input order, preserving the YYYY/QTRn structure per
// §6's on-disk layout. A single file's NotFound is logged and skipped;
// any other error aborts the batch immediately.
func (r *IndexRetriever) CopyIndexFilesForDateRangeTo(ctx context.Context, list []pathplan.RemotePath, dir string, replace bool) ([]pathplan.LocalPath, error) {
	var out []pathplan.LocalPath
	for _, remote := range list {
		local, err := r.hierarchicalCopy(ctx, remote, dir, replace)
		if err != nil {
			if mirrorerrors.IsNotFound(err) {
				continue
			}
			return out, err
		}
		out = append(out, local)
	}
	return out, nil
}

func (r *IndexRetriever) hierarchicalCopy(ctx context.Context, remote pathplan.RemotePath, dir string, replace bool) (pathplan.LocalPath, error) {
	q, ok := pathplan.QuarterFromRemotePath(remote)
	if !ok {
		return "", &mirrorerrors.AssertionViolation{Reason: "remote index path has no YYYY/QTRn segment: " + string(remote)}
	}
	return r.HierarchicalCopyRemoteIndexFileTo(ctx, remote, dir, q, replace)
}

// ConcurrentlyCopyIndexFilesForDateRangeTo is CopyIndexFilesForDateRangeTo's
// bounded-concurrency counterpart. Mirror layout is identical between
// the two paths: both write to pathplan.ToLocalHierarchical(remote, dir, q)
// for every remote in list, by construction.
func (r *IndexRetriever) ConcurrentlyCopyIndexFilesForDateRangeTo(ctx context.Context, list []pathplan.RemotePath, dir string, maxWorkers int, replace bool) ([]pathplan.LocalPath, error) {
	items := make([]workerpool.Item[pathplan.LocalPath], len(list))
	for i, remote := range list {
		remote := remote
		items[i] = workerpool.Item[pathplan.LocalPath]{
			Run: func(ctx context.Context) (pathplan.LocalPath, error) {
				return r.hierarchicalCopy(ctx, remote, dir, replace)
			},
		}
	}
	results, err := workerpool.Run(ctx, maxWorkers, items)
	var out []pathplan.LocalPath
	for _, res := range results {
		if res.Err == nil && res.Value != "" {
			out = append(out, res.Value)
		}
	}
	return out, err
}
