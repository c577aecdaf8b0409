// Package tickercache maintains the ticker->CIK translation used to
// filter filings by company. It is loaded once in a single-threaded
// initialization phase (from the upstream manifest or a prior local
// cache file) and is thereafter read-only for the run; the
// orchestrator is the only writer, and it writes exactly once at
// startup.
package tickercache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dpriedel/edgarmirror/pkg/httpfetch"
	"github.com/dpriedel/edgarmirror/pkg/indexparser"
	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
)

// NoCIKFound is the sentinel returned for an unresolved ticker.
const NoCIKFound = "**no_CIK_found**"

// ManifestPath is the upstream manifest's well-known path.
const ManifestPath = "/files/company_tickers.json"

// TickerCache is the in-memory-for-the-run ticker->CIK map.
type TickerCache struct {
	byTicker map[string]string
}

// New returns an empty cache.
func New() *TickerCache {
	return &TickerCache{byTicker: make(map[string]string)}
}

// manifestRecord mirrors one entry of the SEC's company_tickers.json,
// keyed by an arbitrary numeric string in the source document.
type manifestRecord struct {
	CIK    json.Number `json:"cik_str"`
	Name   string      `json:"title"`
	Ticker string      `json:"ticker"`
}

// DownloadCache fetches the upstream manifest through client, writes
// it to localFile as tabular ticker\tCIK text, and returns the number
// of records ingested.
func (c *TickerCache) DownloadCache(ctx context.Context, client *httpfetch.Client, localFile string) (int, error) {
	body, err := client.RetrieveText(ctx, ManifestPath)
	if err != nil {
		return 0, err
	}

	var raw map[string]manifestRecord
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return 0, &mirrorerrors.ProtocolError{Reason: "decoding ticker manifest", Err: err}
	}

	// Iterate in a stable order (by the manifest's own numeric index)
	// so re-downloads produce byte-identical cache files when the
	// upstream content hasn't changed.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, _ := strconv.Atoi(keys[i])
		nj, _ := strconv.Atoi(keys[j])
		return ni < nj
	})

	count := 0
	for _, k := range keys {
		rec := raw[k]
		ticker := strings.ToUpper(strings.TrimSpace(rec.Ticker))
		if ticker == "" {
			continue
		}
		cikInt, err := rec.CIK.Int64()
		if err != nil {
			continue
		}
		c.byTicker[ticker] = indexparser.NormalizeCIK(fmt.Sprintf("%d", cikInt))
		count++
	}

	if err := c.save(localFile); err != nil {
		return 0, err
	}
	return count, nil
}

// UseCacheFile loads prior contents from a tabular ticker\tCIK file.
// Duplicate tickers within the file are resolved last-writer-wins, so
// the returned count may differ from the count DownloadCache reported
// when the file was produced.
func (c *TickerCache) UseCacheFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &mirrorerrors.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		ticker := strings.ToUpper(strings.TrimSpace(parts[0]))
		cik := indexparser.NormalizeCIK(parts[1])
		c.byTicker[ticker] = cik // last-writer-wins
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, &mirrorerrors.IOError{Op: "read", Path: path, Err: err}
	}
	return count, nil
}

func (c *TickerCache) save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &mirrorerrors.IOError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	tickers := make([]string, 0, len(c.byTicker))
	for t := range c.byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", t, c.byTicker[t]); err != nil {
			return &mirrorerrors.IOError{Op: "write", Path: path, Err: err}
		}
	}
	return w.Flush()
}

// ConvertTickerToCIK uppercases ticker and returns its 10-digit CIK,
// or the NoCIKFound sentinel. It never returns an error: an unknown
// ticker is an expected outcome, not a failure.
func (c *TickerCache) ConvertTickerToCIK(ticker string) string {
	cik, ok := c.byTicker[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return NoCIKFound
	}
	return cik
}

// ConvertTickerFileToCIKs bulk-resolves tickers named in column colIdx
// (0-based, tab or whitespace separated) of the file at path, and
// returns the number of tickers that resolved to a known CIK.
func (c *TickerCache) ConvertTickerFileToCIKs(path string, colIdx int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &mirrorerrors.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	resolved := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if colIdx >= len(fields) {
			continue
		}
		if c.ConvertTickerToCIK(fields[colIdx]) != NoCIKFound {
			resolved++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, &mirrorerrors.IOError{Op: "read", Path: path, Err: err}
	}
	return resolved, nil
}

// Len returns the number of tickers currently resolvable.
func (c *TickerCache) Len() int { return len(c.byTicker) }
