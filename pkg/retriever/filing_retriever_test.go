package retriever_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpriedel/edgarmirror/pkg/indexparser"
	"github.com/dpriedel/edgarmirror/pkg/mirrorlog"
	"github.com/dpriedel/edgarmirror/pkg/pathplan"
	"github.com/dpriedel/edgarmirror/pkg/retriever"
)

func samplePlan() indexparser.FilingsPlan {
	return indexparser.FilingsPlan{
		"10-K": {"/edgar/data/12345/a.txt"},
		"4":    {"/edgar/data/12345/b.txt", "/edgar/data/12345/c.txt"},
	}
}

func TestMirrorSequential(t *testing.T) {
	client, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("filing body"))
	})
	defer closeFn()

	fr := retriever.NewFilingRetriever(client, mirrorlog.Nop())
	root := t.TempDir()
	files, err := fr.MirrorSequential(context.Background(), samplePlan(), root, false)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Contains(t, files, filepath.Join(root, "10-K", "a.txt"))
	assert.Contains(t, files, filepath.Join(root, "4", "b.txt"))
}

func TestMirrorConcurrentMatchesSequentialSet(t *testing.T) {
	client, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("filing body"))
	})
	defer closeFn()

	plan := samplePlan()
	fr := retriever.NewFilingRetriever(client, mirrorlog.Nop())

	seqRoot := t.TempDir()
	seq, err := fr.MirrorSequential(context.Background(), plan, seqRoot, false)
	require.NoError(t, err)

	concRoot := t.TempDir()
	conc, err := fr.MirrorConcurrent(context.Background(), plan, concRoot, 4, false)
	require.NoError(t, err)

	relSeq := make([]string, len(seq))
	for i, p := range seq {
		r, err := filepath.Rel(seqRoot, p)
		require.NoError(t, err)
		relSeq[i] = r
	}
	relConc := make([]string, len(conc))
	for i, p := range conc {
		r, err := filepath.Rel(concRoot, p)
		require.NoError(t, err)
		relConc[i] = r
	}
	assert.ElementsMatch(t, relSeq, relConc)
}

func TestMirrorSkipsNotFound(t *testing.T) {
	client, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	fr := retriever.NewFilingRetriever(client, mirrorlog.Nop())
	plan := indexparser.FilingsPlan{"10-K": {pathplan.RemotePath("/edgar/data/1/missing.txt")}}
	files, err := fr.MirrorSequential(context.Background(), plan, t.TempDir(), false)
	require.NoError(t, err)
	assert.Empty(t, files)
}
