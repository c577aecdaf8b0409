package retriever

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dpriedel/edgarmirror/pkg/httpfetch"
	"github.com/dpriedel/edgarmirror/pkg/indexparser"
	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
	"github.com/dpriedel/edgarmirror/pkg/pathplan"
	"github.com/dpriedel/edgarmirror/pkg/workerpool"
)

// FilingRetriever mirrors the filings named by an indexparser.FilingsPlan
// under <root>/<form-type>/<basename>, creating each form-type
// subdirectory on demand.
type FilingRetriever struct {
	client *httpfetch.Client
	log    *zap.SugaredLogger
}

// NewFilingRetriever constructs a FilingRetriever.
func NewFilingRetriever(client *httpfetch.Client, log *zap.SugaredLogger) *FilingRetriever {
	return &FilingRetriever{client: client, log: log}
}

func localFilingPath(root, formType string, remote pathplan.RemotePath) string {
	return filepath.Join(root, filepath.FromSlash(formType), path.Base(string(remote)))
}

// copyFiling mirrors one filing, honoring the same replace=false
// idempotence contract as IndexRetriever.
func (f *FilingRetriever) copyFiling(ctx context.Context, formType string, remote pathplan.RemotePath, root string, replace bool) (string, error) {
	local := localFilingPath(root, formType, remote)
	if !replace {
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}
	if err := f.client.DownloadFile(ctx, string(remote), local); err != nil {
		if mirrorerrors.IsNotFound(err) {
			if f.log != nil {
				f.log.Warnw("filing not found upstream, skipping", "remote", remote)
			}
		}
		return "", err
	}
	return local, nil
}

// MirrorSequential downloads every filing named by plan to root, one
// at a time, in form-then-path order. It is the degenerate case of
// MirrorConcurrent with worker count 1 — both share copyFiling, so
// their mirror layout is identical by construction.
func (f *FilingRetriever) MirrorSequential(ctx context.Context, plan indexparser.FilingsPlan, root string, replace bool) ([]string, error) {
	var out []string
	for _, formType := range indexparser.SortedFormNames(plan) {
		for _, remote := range plan[formType] {
			local, err := f.copyFiling(ctx, formType, remote, root, replace)
			if err != nil {
				if mirrorerrors.IsNotFound(err) {
					continue
				}
				return out, err
			}
			out = append(out, local)
		}
	}
	return out, nil
}

type filingJob struct {
	formType string
	remote   pathplan.RemotePath
}

// MirrorConcurrent downloads every filing named by plan to root using
// a bounded pool of maxWorkers. The returned list mirrors the
// file-set produced by MirrorSequential for the same plan (set
// equality, per the determinism-of-layout invariant); per-worker
// completion order is unspecified.
func (f *FilingRetriever) MirrorConcurrent(ctx context.Context, plan indexparser.FilingsPlan, root string, maxWorkers int, replace bool) ([]string, error) {
	var jobs []filingJob
	for _, formType := range indexparser.SortedFormNames(plan) {
		for _, remote := range plan[formType] {
			jobs = append(jobs, filingJob{formType: formType, remote: remote})
		}
	}

	items := make([]workerpool.Item[string], len(jobs))
	for i, job := range jobs {
		job := job
		items[i] = workerpool.Item[string]{
			Run: func(ctx context.Context) (string, error) {
				return f.copyFiling(ctx, job.formType, job.remote, root, replace)
			},
		}
	}

	results, err := workerpool.Run(ctx, maxWorkers, items)
	var out []string
	for _, res := range results {
		if res.Err == nil && res.Value != "" {
			out = append(out, res.Value)
		}
	}
	return out, err
}
