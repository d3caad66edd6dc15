package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices"
	"github.com/ellavondegurechaff/cmprices/cmprices/analytics"
	"github.com/ellavondegurechaff/cmprices/cmprices/catalog"
	"github.com/ellavondegurechaff/cmprices/cmprices/database"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
	"github.com/ellavondegurechaff/cmprices/cmprices/logger"
	"github.com/ellavondegurechaff/cmprices/cmprices/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

type app struct {
	cfg      *cmprices.Config
	db       *database.DB
	cards    repositories.CardRepository
	sets     repositories.SetRepository
	prices   repositories.PriceRepository
	catalogs repositories.CatalogRepository
	slopes   repositories.SlopeRepository

	dedup         *catalog.Deduplicator
	priceIngestor *catalog.PriceIngestor
	productIngest *catalog.ProductIngestor
	downloader    *catalog.Downloader
	slopeEngine   *analytics.SlopeEngine
	ranker        *analytics.Ranker
	searchService *services.CardSearchService
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler()))

	logger.LogSystem("Starting Cardmarket price tracker",
		slog.String("version", version),
		slog.String("commit", commit))

	var (
		configPath   = flag.String("config", "config.toml", "path to config")
		syncProducts = flag.Bool("sync-products", false, "download and ingest the product list snapshot")
		syncPrices   = flag.Bool("sync-prices", false, "download and ingest the price guide snapshot")
		fromArchive  = flag.Bool("from-archive", false, "replay archived price guide snapshots")
		fromDate     = flag.String("from-date", "", "only replay archives dated YYYY-MM-DD or later")
		force        = flag.Bool("force", false, "reprocess snapshots even if already ingested")
		updateSlopes = flag.Bool("update-slopes", false, "recompute slope rows for all cards with prices")
		top          = flag.Int("top", 0, "show the top N movers")
		interval     = flag.Int("interval", 7, "trailing days for rankings and the rising screen")
		metricName   = flag.String("metric", "trend", "price metric for rankings")
		spikes       = flag.Bool("spikes", false, "detect spiking cards")
		rising       = flag.Bool("rising", false, "screen for monotone rising cards")
		setCodes     = flag.String("sets", "", "comma-separated set codes scoping -spikes/-rising (default: configured standard sets)")
		search       = flag.String("search", "", "fuzzy-search cards by name")
		status       = flag.Bool("status", false, "show ingestion status")
	)
	flag.Parse()

	cfg, err := cmprices.LoadConfig(*configPath)
	if err != nil {
		logger.LogError("Failed to load configuration", err)
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.FromConfig(cfg.Log.Level, cfg.Log.Format, cfg.Log.AddSource)))
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		logger.LogError("Database connection failed", err,
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		logger.LogError("Failed to initialize database schema", err,
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	a := newApp(cfg, db)

	metric, err := models.ParseMetric(*metricName)
	if err != nil {
		logger.LogError("Invalid metric", err)
		os.Exit(-1)
	}

	ran := false
	fail := func(msg string, err error) {
		logger.LogError(msg, err)
		os.Exit(-1)
	}

	if *syncProducts {
		ran = true
		if err := a.runSyncProducts(ctx, *force); err != nil {
			fail("Product sync failed", err)
		}
	}
	if *syncPrices {
		ran = true
		if err := a.runSyncPrices(ctx, *force); err != nil {
			fail("Price sync failed", err)
		}
	}
	if *fromArchive {
		ran = true
		if err := a.runFromArchive(ctx, *fromDate, *force); err != nil {
			fail("Archive replay failed", err)
		}
	}
	if *updateSlopes {
		ran = true
		if err := a.runUpdateSlopes(ctx); err != nil {
			fail("Slope update failed", err)
		}
	}
	if *top > 0 {
		ran = true
		if err := a.runTopMovers(ctx, *interval, metric, *top); err != nil {
			fail("Ranking failed", err)
		}
	}
	if *spikes {
		ran = true
		if err := a.runSpikes(ctx, metric, *setCodes); err != nil {
			fail("Spike detection failed", err)
		}
	}
	if *rising {
		ran = true
		if err := a.runRising(ctx, *interval, *setCodes); err != nil {
			fail("Rising screen failed", err)
		}
	}
	if *search != "" {
		ran = true
		if err := a.runSearch(ctx, *search); err != nil {
			fail("Search failed", err)
		}
	}
	if *status {
		ran = true
		if err := a.runStatus(ctx); err != nil {
			fail("Status failed", err)
		}
	}

	if !ran {
		flag.Usage()
		os.Exit(2)
	}
}

func newApp(cfg *cmprices.Config, db *database.DB) *app {
	a := &app{
		cfg:      cfg,
		db:       db,
		cards:    repositories.NewCardRepository(db.BunDB()),
		sets:     repositories.NewSetRepository(db.BunDB()),
		prices:   repositories.NewPriceRepository(db.BunDB()),
		catalogs: repositories.NewCatalogRepository(db.BunDB()),
		slopes:   repositories.NewSlopeRepository(db.BunDB()),
	}

	a.dedup = catalog.NewDeduplicator(a.catalogs)
	a.priceIngestor = catalog.NewPriceIngestor(a.cards, a.prices, a.dedup)
	a.productIngest = catalog.NewProductIngestor(a.cards, a.dedup)

	var uploader catalog.Uploader
	if cfg.Spaces.Key != "" {
		store, err := services.NewArchiveStore(
			cfg.Spaces.Key,
			cfg.Spaces.Secret,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.ArchiveRoot,
		)
		if err != nil {
			slog.Warn("Remote archive store unavailable", slog.Any("error", err))
		} else {
			uploader = store
		}
	}
	a.downloader = catalog.NewDownloader(cfg.Catalog.ArchiveDir, uploader)

	a.slopeEngine = analytics.NewSlopeEngine(a.prices, a.slopes, cfg.Analytics.SlopeIntervals)
	a.ranker = analytics.NewRanker(a.cards, a.sets, a.prices, a.slopes, analytics.RankerConfig{
		TrendFloor:  cfg.Analytics.RisingTrendFloor,
		MinPercent:  cfg.Analytics.RisingMinPercent,
		Concurrency: cfg.Analytics.Concurrency,
	})
	a.searchService = services.NewCardSearchService(a.cards, a.prices, a.slopes)

	return a
}

// scopeCardIDs resolves the card set a screen runs over: explicit set codes
// when given, the configured standard-legal sets otherwise.
func (a *app) scopeCardIDs(ctx context.Context, setCodes string) ([]int64, error) {
	expansionIDs := a.cfg.Analytics.LegalStandardSets

	if setCodes != "" {
		codes := strings.Split(setCodes, ",")
		for i := range codes {
			codes[i] = strings.TrimSpace(codes[i])
		}
		sets, err := a.sets.GetByCodes(ctx, codes)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve set codes: %w", err)
		}
		if len(sets) == 0 {
			return nil, fmt.Errorf("no sets match codes %q", setCodes)
		}
		expansionIDs = make([]int64, 0, len(sets))
		for _, set := range sets {
			expansionIDs = append(expansionIDs, set.ExpansionID)
		}
	}

	cardIDs, err := a.cards.GetIDsByExpansions(ctx, expansionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards for sets: %w", err)
	}
	return cardIDs, nil
}

func (a *app) runSyncProducts(ctx context.Context, force bool) error {
	start := time.Now()

	raw, err := a.downloader.Fetch(ctx, a.cfg.Catalog.ProductsURL)
	if err != nil {
		return err
	}

	result, err := a.productIngest.Ingest(ctx, raw, force)
	if err != nil {
		return err
	}

	if _, err := a.downloader.Archive(ctx, raw, catalog.KindProducts, result.CatalogDate); err != nil {
		slog.Warn("Failed to archive product snapshot", slog.Any("error", err))
	}

	logger.LogIngest("Product sync finished", time.Since(start),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated))
	fmt.Printf("Products: %d new cards, %d updated (catalog %s)\n",
		result.Created, result.Updated, result.CatalogDate.Format("2006-01-02"))
	return nil
}

func (a *app) runSyncPrices(ctx context.Context, force bool) error {
	start := time.Now()

	raw, err := a.downloader.Fetch(ctx, a.cfg.Catalog.PricesURL)
	if err != nil {
		return err
	}

	result, err := a.priceIngestor.Ingest(ctx, raw, force)
	if err != nil {
		return err
	}

	if _, err := a.downloader.Archive(ctx, raw, catalog.KindPriceGuide, result.CatalogDate); err != nil {
		slog.Warn("Failed to archive price snapshot", slog.Any("error", err))
	}

	logger.LogIngest("Price sync finished", time.Since(start),
		slog.Int("created", result.Created),
		slog.Int("skipped_existing", result.SkippedExisting),
		slog.Int("unknown_cards", result.UnknownCards))
	fmt.Printf("Prices: %d new rows, %d skipped, %d unknown cards (catalog %s)\n",
		result.Created, result.SkippedExisting, result.UnknownCards,
		result.CatalogDate.Format("2006-01-02"))

	if result.Created > 0 {
		return a.updateSlopesForLatest(ctx)
	}
	return nil
}

func (a *app) runFromArchive(ctx context.Context, fromDate string, force bool) error {
	start := time.Now()

	opts := catalog.ProcessOptions{
		Dir:   a.cfg.Catalog.ArchiveDir,
		Force: force,
	}
	if fromDate != "" {
		parsed, err := time.Parse("2006-01-02", fromDate)
		if err != nil {
			return fmt.Errorf("invalid -from-date %q: %w", fromDate, err)
		}
		opts.FromDate = parsed
	}

	processor := catalog.NewArchiveProcessor(a.priceIngestor,
		a.cfg.Catalog.MaxRetries,
		time.Duration(a.cfg.Catalog.RetryDelay)*time.Second)

	result, err := processor.ProcessDirectory(ctx, opts)
	if err != nil {
		return err
	}

	logger.LogIngest("Archive replay finished", time.Since(start),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped))
	fmt.Printf("Archives: %d processed, %d failed, %d skipped, %d new prices\n",
		result.Processed, result.Failed, result.Skipped, result.TotalNewPrices)
	for _, f := range result.Files {
		if f.Status == catalog.StatusFailed {
			fmt.Printf("  FAILED %s after %d attempts: %v\n", f.File, f.Attempts, f.Err)
		}
	}

	if result.TotalNewPrices > 0 {
		return a.updateSlopesForLatest(ctx)
	}
	return nil
}

// updateSlopesForLatest recomputes slopes for every card that has a price row
// on the newest catalog date.
func (a *app) updateSlopesForLatest(ctx context.Context) error {
	latest, err := a.prices.LatestCatalogDate(ctx)
	if err != nil {
		return fmt.Errorf("failed to find latest catalog date: %w", err)
	}
	if latest.IsZero() {
		return nil
	}

	cardIDs, err := a.prices.CardIDsForCatalogDate(ctx, latest)
	if err != nil {
		return fmt.Errorf("failed to list cards for latest catalog: %w", err)
	}

	created, updated, err := a.slopeEngine.UpdateCardSlopes(ctx, cardIDs)
	if err != nil {
		return err
	}

	fmt.Printf("Slopes: %d created, %d updated for %d cards\n", created, updated, len(cardIDs))
	return nil
}

func (a *app) runUpdateSlopes(ctx context.Context) error {
	return a.updateSlopesForLatest(ctx)
}

func (a *app) runTopMovers(ctx context.Context, intervalDays int, metric models.PriceMetric, limit int) error {
	movers, err := a.ranker.TopMovers(ctx, intervalDays, metric, analytics.TopMoversOptions{
		Limit:           limit,
		MinCurrentPrice: a.cfg.Analytics.RisingTrendFloor,
		RequirePositive: true,
	})
	if err != nil {
		return err
	}
	if len(movers) == 0 {
		fmt.Println("No movers found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CARD\tSET\tCHANGE%\tPER DAY\tFROM\tTO\tDIFF")
	for _, m := range movers {
		fmt.Fprintf(w, "%s\t%s\t%+.2f\t%+.4f\t%.2f\t%.2f\t%+.2f\n",
			m.Name, m.SetCode, m.PercentChange, m.SlopePerDay,
			m.InitialPrice, m.FinalPrice, m.AbsoluteChange)
	}
	return w.Flush()
}

func (a *app) runSpikes(ctx context.Context, metric models.PriceMetric, setCodes string) error {
	detector, err := analytics.NewSpikeDetector(a.cards, a.prices, analytics.SpikeConfig{
		Window:            a.cfg.Analytics.SpikeWindow,
		AcceleratingRatio: a.cfg.Analytics.SpikeAcceleratingRatio,
		MinPercent:        a.cfg.Analytics.SpikeMinPercent,
		MinAbsolute:       a.cfg.Analytics.SpikeMinAbsolute,
		PriceFloor:        a.cfg.Analytics.SpikePriceFloor,
		Metric:            metric,
	})
	if err != nil {
		return err
	}

	cardIDs, err := a.scopeCardIDs(ctx, setCodes)
	if err != nil {
		return err
	}

	spikes, err := detector.DetectSpikes(ctx, cardIDs)
	if err != nil {
		return err
	}
	if len(spikes) == 0 {
		fmt.Println("No spikes detected.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CARD\tPRICE\tLAST DELTA\tWINDOW DELTA\tCHANGE%")
	for _, s := range spikes {
		fmt.Fprintf(w, "%s\t%.2f\t%+.2f\t%+.2f\t%+.2f\n",
			s.Name, s.Current, s.RecentDelta, s.WindowDelta, s.PercentChange)
	}
	return w.Flush()
}

func (a *app) runRising(ctx context.Context, days int, setCodes string) error {
	cardIDs, err := a.scopeCardIDs(ctx, setCodes)
	if err != nil {
		return err
	}

	risers, err := a.ranker.RisingCards(ctx, cardIDs, days)
	if err != nil {
		return err
	}
	if len(risers) == 0 {
		fmt.Println("No rising cards found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCARD\tSCORE%")
	for _, r := range risers {
		fmt.Fprintf(w, "%d\t%s\t%+.2f\n", r.CMID, r.Name, r.Score)
	}
	return w.Flush()
}

func (a *app) runSearch(ctx context.Context, query string) error {
	results, err := a.searchService.Search(ctx, query, 10)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No cards found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCARD\tEXPANSION\tTREND\t7D%")
	for _, r := range results {
		trend := "-"
		if r.LatestTrend != nil {
			trend = fmt.Sprintf("%.2f", *r.LatestTrend)
		}
		week := "-"
		if r.WeekChange != nil {
			week = fmt.Sprintf("%+.2f", *r.WeekChange)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			r.Card.CMID, r.Card.Name, r.Card.ExpansionID, trend, week)
	}
	return w.Flush()
}

func (a *app) runStatus(ctx context.Context) error {
	cardCount, err := a.cards.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count cards: %w", err)
	}

	sets, err := a.sets.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sets: %w", err)
	}

	fmt.Printf("Cards: %d\nSets: %d\n", cardCount, len(sets))

	for _, catalogType := range []models.CatalogType{models.CatalogProducts, models.CatalogPrices} {
		entries, err := a.catalogs.GetAll(ctx, catalogType)
		if err != nil {
			return fmt.Errorf("failed to list %s catalogs: %w", catalogType, err)
		}
		latest, err := a.catalogs.GetLatest(ctx, catalogType)
		if err != nil {
			return fmt.Errorf("failed to find latest %s catalog: %w", catalogType, err)
		}

		latestStr := "never"
		if latest != nil {
			latestStr = latest.CatalogDate.Format("2006-01-02")
		}
		fmt.Printf("Snapshots (%s): %d ingested, latest %s\n", catalogType, len(entries), latestStr)
	}

	return nil
}
