package retriever_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpriedel/edgarmirror/pkg/civil"
	"github.com/dpriedel/edgarmirror/pkg/httpfetch"
	"github.com/dpriedel/edgarmirror/pkg/mirrorlog"
	"github.com/dpriedel/edgarmirror/pkg/pathplan"
	"github.com/dpriedel/edgarmirror/pkg/retriever"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*httpfetch.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	cfg := httpfetch.DefaultConfig("example.invalid", 0)
	cfg.MinInterval = 0
	c := httpfetch.NewWithHTTPClient(cfg, srv.Client(), srv.URL)
	return c, srv.Close
}

func directoryListingHandler(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>"))
		for _, n := range names {
			w.Write([]byte(`<a href="` + n + `">` + n + `</a>`))
		}
		w.Write([]byte("</body></html>"))
	}
}

func TestFindRemoteIndexFileNamesForDateRangeDaily(t *testing.T) {
	client, closeFn := testClient(t, directoryListingHandler(
		"form.20131014.idx", "master.20131014.idx",
		"form.20131015.idx", "master.20131015.idx",
	))
	defer closeFn()

	ir := retriever.NewIndexRetriever(client, retriever.Daily, mirrorlog.Nop())
	begin := civil.Date{Year: 2013, Month: 10, Day: 14}
	end := civil.Date{Year: 2013, Month: 10, Day: 15}
	dr, err := civil.NewDateRange(begin, end)
	require.NoError(t, err)

	paths, err := ir.FindRemoteIndexFileNamesForDateRange(context.Background(), dr)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, pathplan.DailyIndexPath(begin), paths[0])
	assert.Equal(t, pathplan.DailyIndexPath(end), paths[1])
}

func TestFindRemoteIndexFileNamesForDateRangeDailySkipsGapDays(t *testing.T) {
	client, closeFn := testClient(t, directoryListingHandler("form.20131014.idx"))
	defer closeFn()

	ir := retriever.NewIndexRetriever(client, retriever.Daily, mirrorlog.Nop())
	begin := civil.Date{Year: 2013, Month: 10, Day: 14}
	end := civil.Date{Year: 2013, Month: 10, Day: 15}
	dr, err := civil.NewDateRange(begin, end)
	require.NoError(t, err)

	paths, err := ir.FindRemoteIndexFileNamesForDateRange(context.Background(), dr)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, pathplan.DailyIndexPath(begin), paths[0])
}

func TestFindRemoteIndexFileNamesForDateRangeQuarterly(t *testing.T) {
	client, closeFn := testClient(t, directoryListingHandler("master.idx", "company.idx"))
	defer closeFn()

	ir := retriever.NewIndexRetriever(client, retriever.Quarterly, mirrorlog.Nop())
	begin := civil.Date{Year: 2012, Month: 12, Day: 20}
	end := civil.Date{Year: 2013, Month: 5, Day: 21}
	dr, err := civil.NewDateRange(begin, end)
	require.NoError(t, err)

	paths, err := ir.FindRemoteIndexFileNamesForDateRange(context.Background(), dr)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, pathplan.QuarterlyIndexFilePath(civil.QuarterOf(begin), "master.idx"), paths[0])
}

func TestFindRemoteIndexFileNamesForDateRangeQuarterlyFallsBackToFormIdx(t *testing.T) {
	client, closeFn := testClient(t, directoryListingHandler("form.idx", "company.idx"))
	defer closeFn()

	ir := retriever.NewIndexRetriever(client, retriever.Quarterly, mirrorlog.Nop())
	d := civil.Date{Year: 2000, Month: 1, Day: 1}
	dr, err := civil.NewDateRange(d, d)
	require.NoError(t, err)

	paths, err := ir.FindRemoteIndexFileNamesForDateRange(context.Background(), dr)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, pathplan.QuarterlyIndexFilePath(civil.QuarterOf(d), "form.idx"), paths[0])
}

func TestFindRemoteIndexFileNameNearestDateRejectsQuarterly(t *testing.T) {
	ir := retriever.NewIndexRetriever(nil, retriever.Quarterly, mirrorlog.Nop())
	_, _, err := ir.FindRemoteIndexFileNameNearestDate(context.Background(), civil.Today())
	assert.Error(t, err)
}

func TestFindRemoteIndexFileNameNearestDate(t *testing.T) {
	client, closeFn := testClient(t, directoryListingHandler("master.20131010.idx", "master.20131011.idx"))
	defer closeFn()

	ir := retriever.NewIndexRetriever(client, retriever.Daily, mirrorlog.Nop())
	target := civil.Date{Year: 2013, Month: 10, Day: 14}
	remote, actual, err := ir.FindRemoteIndexFileNameNearestDate(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2013, Month: 10, Day: 11}, actual)
	assert.Equal(t, pathplan.DailyIndexPath(actual), remote)
}

func TestCopyRemoteIndexFileToIsIdempotent(t *testing.T) {
	calls := 0
	client, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("index body"))
	})
	defer closeFn()

	ir := retriever.NewIndexRetriever(client, retriever.Daily, mirrorlog.Nop())
	remote := pathplan.DailyIndexPath(civil.Date{Year: 2013, Month: 10, Day: 14})
	dir := t.TempDir()

	local1, err := ir.CopyRemoteIndexFileTo(context.Background(), remote, dir, false)
	require.NoError(t, err)
	local2, err := ir.CopyRemoteIndexFileTo(context.Background(), remote, dir, false)
	require.NoError(t, err)

	assert.Equal(t, local1, local2)
	assert.Equal(t, 1, calls, "second call should be a no-op, not re-fetch")
}

func TestConcurrentlyCopyIndexFilesForDateRangeTo(t *testing.T) {
	client, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body"))
	})
	defer closeFn()

	ir := retriever.NewIndexRetriever(client, retriever.Daily, mirrorlog.Nop())
	paths := []pathplan.RemotePath{
		pathplan.DailyIndexPath(civil.Date{Year: 2013, Month: 10, Day: 14}),
		pathplan.DailyIndexPath(civil.Date{Year: 2013, Month: 10, Day: 15}),
	}
	dir := t.TempDir()
	locals, err := ir.ConcurrentlyCopyIndexFilesForDateRangeTo(context.Background(), paths, dir, 2, false)
	require.NoError(t, err)
	assert.Len(t, locals, 2)
}
