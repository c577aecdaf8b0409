// Command edgar-mirror is the CLI collaborator described in §6: it
// owns flag parsing and top-level orchestration, and is the only piece
// of this repository that is not part of the retrieval-and-planning
// core. It follows the teacher's own cmd/ convention (the standard
// "flag" package, usage text with worked examples) rather than
// reaching for a cobra/viper CLI framework the teacher itself doesn't
// use for its binaries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dpriedel/edgarmirror/pkg/civil"
	"github.com/dpriedel/edgarmirror/pkg/finnotes"
	"github.com/dpriedel/edgarmirror/pkg/httpfetch"
	"github.com/dpriedel/edgarmirror/pkg/indexparser"
	"github.com/dpriedel/edgarmirror/pkg/mirrorconfig"
	"github.com/dpriedel/edgarmirror/pkg/mirrorlog"
	"github.com/dpriedel/edgarmirror/pkg/retriever"
	"github.com/dpriedel/edgarmirror/pkg/tickercache"
)

func main() {
	var (
		mode         = flag.String("mode", "daily", "one of: daily, quarterly, ticker-only, notes")
		configPath   = flag.String("config", "", "path to a YAML config file (optional)")
		host         = flag.String("host", "", "upstream archive host (overrides config)")
		port         = flag.Int("port", 0, "upstream archive port (overrides config)")
		beginDate    = flag.String("begin-date", "", "range start, YYYY-MM-DD (required)")
		endDate      = flag.String("end-date", "", "range end, YYYY-MM-DD (defaults to begin-date)")
		indexDir     = flag.String("index-dir", "", "destination for index files (overrides config)")
		formDir      = flag.String("form-dir", "", "destination for filings (overrides config)")
		notesDir     = flag.String("notes-directory", "", "destination for finnotes bundles (overrides config)")
		indexOnly    = flag.Bool("index-only", false, "skip the filing-download stage")
		replaceIndex = flag.Bool("replace-index-files", false, "force re-download of index files")
		replaceForms = flag.Bool("replace-form-files", false, "force re-download of filings")
		forms        = flag.String("form", "", "comma-separated form-type allow-list")
		ticker       = flag.String("ticker", "", "filter by a single ticker")
		tickerFile   = flag.String("ticker-file", "", "ticker-only mode: resolve the tickers listed in a file and print how many resolved (not used as a filter)")
		tickerCache  = flag.String("ticker-cache", "", "path to the persistent ticker->CIK cache (overrides config)")
		max          = flag.Int("max", 0, "cap on number of filings to download (0 = unbounded)")
		logLevel     = flag.String("log-level", "", "debug, info, warn, or error (overrides config)")
		logPath      = flag.String("log-path", "", "write logs to this file instead of stderr (overrides config)")
		workers      = flag.Int("workers", 0, "max concurrent downloads (overrides config)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Mirrors SEC EDGAR index files, filings, and financial-statements-and-notes bundles.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -mode daily -begin-date 2013-10-14 -form-dir data/filings\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -mode quarterly -begin-date 2000-01-01 -index-only\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -mode notes -begin-date 2023-08-03 -end-date 2024-03-05\n", os.Args[0])
	}
	flag.Parse()

	cfg, err := mirrorconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(&cfg, *host, *port, *indexDir, *formDir, *notesDir, *tickerCache, *logLevel, *logPath, *workers)

	log, cleanup, err := mirrorlog.New(mirrorlog.Config{Level: cfg.Logging.Level, Path: cfg.Logging.Path})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if *beginDate == "" {
		log.Error("begin-date is required")
		flag.Usage()
		os.Exit(1)
	}
	begin, err := civil.Parse(*beginDate)
	if err != nil {
		log.Errorw("invalid begin-date", "error", err)
		os.Exit(1)
	}
	endStr := *endDate
	if endStr == "" {
		endStr = *beginDate
	}
	end, err := civil.Parse(endStr)
	if err != nil {
		log.Errorw("invalid end-date", "error", err)
		os.Exit(1)
	}
	dateRange, err := civil.NewDateRange(begin, end)
	if err != nil {
		log.Errorw("invalid date range", "error", err)
		os.Exit(1)
	}

	fetchCfg := httpfetch.DefaultConfig(cfg.Upstream.Host, cfg.Upstream.Port)
	fetchCfg.UserAgent = cfg.Upstream.UserAgent
	if cfg.Fetch.PoliteMillis > 0 {
		fetchCfg.MinInterval = time.Duration(cfg.Fetch.PoliteMillis) * time.Millisecond
	}
	if cfg.Fetch.RequestTimeoutS > 0 {
		fetchCfg.RequestTimeout = time.Duration(cfg.Fetch.RequestTimeoutS) * time.Second
	}
	client := httpfetch.New(fetchCfg)

	ctx := context.Background()
	maxWorkers := cfg.Fetch.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	switch *mode {
	case "ticker-only":
		runTickerOnly(ctx, log, client, cfg, *ticker, *tickerFile)
	case "daily":
		runIndexAndFilings(ctx, log, client, cfg, dateRange, retriever.Daily, *indexOnly, *replaceIndex, *replaceForms, *forms, *ticker, *max, maxWorkers)
	case "quarterly":
		runIndexAndFilings(ctx, log, client, cfg, dateRange, retriever.Quarterly, *indexOnly, *replaceIndex, *replaceForms, *forms, *ticker, *max, maxWorkers)
	case "notes":
		runNotes(ctx, log, client, cfg, dateRange, *replaceIndex)
	default:
		log.Errorw("unknown mode", "mode", *mode)
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *mirrorconfig.Config, host string, port int, indexDir, formDir, notesDir, tickerCache, logLevel, logPath string, workers int) {
	if host != "" {
		cfg.Upstream.Host = host
	}
	if port != 0 {
		cfg.Upstream.Port = port
	}
	if indexDir != "" {
		cfg.Paths.IndexDir = indexDir
	}
	if formDir != "" {
		cfg.Paths.FormDir = formDir
	}
	if notesDir != "" {
		cfg.Paths.NotesDir = notesDir
	}
	if tickerCache != "" {
		cfg.Paths.TickerCache = tickerCache
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logPath != "" {
		cfg.Logging.Path = logPath
	}
	if workers != 0 {
		cfg.Fetch.MaxWorkers = workers
	}
}

func runTickerOnly(ctx context.Context, log *zap.SugaredLogger, client *httpfetch.Client, cfg mirrorconfig.Config, ticker, tickerFile string) {
	cache := tickercache.New()
	if _, err := cache.UseCacheFile(cfg.Paths.TickerCache); err != nil {
		log.Infow("no existing ticker cache found, downloading", "error", err)
		if _, err := cache.DownloadCache(ctx, client, cfg.Paths.TickerCache); err != nil {
			log.Errorw("downloading ticker cache failed", "error", err)
			os.Exit(1)
		}
	}
	if ticker != "" {
		fmt.Println(cache.ConvertTickerToCIK(ticker))
	}
	if tickerFile != "" {
		n, err := cache.ConvertTickerFileToCIKs(tickerFile, 0)
		if err != nil {
			log.Errorw("resolving ticker file failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("resolved %d tickers\n", n)
	}
}

func runIndexAndFilings(ctx context.Context, log *zap.SugaredLogger, client *httpfetch.Client, cfg mirrorconfig.Config, dr civil.DateRange, kind retriever.IndexKind, indexOnly, replaceIndex, replaceForms bool, formsCSV, ticker string, max int, maxWorkers int) {
	ir := retriever.NewIndexRetriever(client, kind, log)
	paths, err := ir.FindRemoteIndexFileNamesForDateRange(ctx, dr)
	if err != nil {
		log.Errorw("enumerating index files failed", "error", err)
		os.Exit(1)
	}

	locals, err := ir.ConcurrentlyCopyIndexFilesForDateRangeTo(ctx, paths, cfg.Paths.IndexDir, maxWorkers, replaceIndex)
	if err != nil {
		log.Errorw("mirroring index files failed", "error", err)
		os.Exit(1)
	}
	log.Infow("mirrored index files", "count", len(locals))

	if indexOnly {
		return
	}

	var ciks []string
	if ticker != "" {
		cache := tickercache.New()
		if _, err := cache.UseCacheFile(cfg.Paths.TickerCache); err != nil {
			if _, err := cache.DownloadCache(ctx, client, cfg.Paths.TickerCache); err != nil {
				log.Errorw("loading ticker cache failed", "error", err)
				os.Exit(1)
			}
		}
		cik := cache.ConvertTickerToCIK(ticker)
		if cik != tickercache.NoCIKFound {
			ciks = append(ciks, cik)
		}
	}

	var formList []string
	if formsCSV != "" {
		for _, f := range strings.Split(formsCSV, ",") {
			formList = append(formList, strings.TrimSpace(f))
		}
	}

	var contents []string
	for _, local := range locals {
		data, err := os.ReadFile(string(local))
		if err != nil {
			log.Errorw("reading mirrored index file failed", "error", err, "path", local)
			os.Exit(1)
		}
		contents = append(contents, string(data))
	}

	plan, flat, err := indexparser.ParseAll(contents, indexparser.Filter{Forms: formList, CIKs: ciks, Max: max})
	if err != nil {
		log.Errorw("parsing index files failed", "error", err)
		os.Exit(1)
	}
	log.Infow("planned filings", "count", len(flat))

	fr := retriever.NewFilingRetriever(client, log)
	files, err := fr.MirrorConcurrent(ctx, plan, cfg.Paths.FormDir, maxWorkers, replaceForms)
	if err != nil {
		log.Errorw("mirroring filings failed", "error", err)
		os.Exit(1)
	}
	log.Infow("mirrored filings", "count", len(files))
}

func runNotes(ctx context.Context, log *zap.SugaredLogger, client *httpfetch.Client, cfg mirrorconfig.Config, dr civil.DateRange, replace bool) {
	planner := finnotes.NewPlanner(client, log)
	done, err := planner.MirrorRange(ctx, dr, cfg.Paths.NotesDir, replace)
	if err != nil {
		log.Errorw("mirroring finnotes bundles failed", "error", err)
		os.Exit(1)
	}
	log.Infow("mirrored finnotes bundles", "count", len(done))
}
