package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rewired-gh/polygraph/internal/catalog"
	"github.com/rewired-gh/polygraph/internal/config"
	"github.com/rewired-gh/polygraph/internal/digest"
	"github.com/rewired-gh/polygraph/internal/entity"
	"github.com/rewired-gh/polygraph/internal/graph"
	"github.com/rewired-gh/polygraph/internal/logger"
	"github.com/rewired-gh/polygraph/internal/models"
	"github.com/rewired-gh/polygraph/internal/polymarket"
	"github.com/rewired-gh/polygraph/internal/server"
	"github.com/rewired-gh/polygraph/internal/storage"
	"github.com/rewired-gh/polygraph/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(
		cfg.Storage.MaxEvents,
		cfg.Storage.DBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	polyClient := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.Polymarket.ClobAPIURL,
		polymarket.ClientConfig{
			Timeout:        cfg.Polymarket.Timeout,
			MaxRetries:     cfg.Polymarket.MaxRetries,
			RetryDelayBase: cfg.Polymarket.RetryDelayBase,
		},
	)

	extractor := entity.NewExtractor()

	// The latest catalog is swapped in atomically after each refresh so API
	// requests never observe a half-built one.
	var latest atomic.Pointer[catalog.Catalog]

	if events, err := store.LoadCatalog(); err != nil {
		logger.Warn("Failed to load persisted catalog: %v", err)
	} else if len(events) > 0 {
		latest.Store(catalog.New(events))
		logger.Info("Warmed catalog from storage (%d events)", len(events))
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var dig *digest.Digest
	if cfg.Digest.Enabled {
		dig = digest.New(store, digest.Config{
			Threshold: cfg.Digest.Threshold,
			TopK:      cfg.Digest.TopK,
			Cooldown:  time.Duration(cfg.Digest.CooldownMultiplier) * cfg.Polymarket.PollInterval,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(
			server.Config{
				ListenAddr:     cfg.Server.ListenAddr,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				DefaultFilter:  cfg.GraphFilter(),
				HistoryMarkets: cfg.Polymarket.HistoryMarkets,
			},
			latest.Load,
			func(ctx context.Context, markets []*models.MarketRecord, window models.Window) map[string]models.PriceSeries {
				return fetchHistories(ctx, polyClient, markets, window, cfg.Polymarket.HistoryBatchSize)
			},
			extractor,
		)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed: %v", err)
				cancel()
			}
		}()
	}

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		if srv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown failed: %v", err)
			}
		}
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting refresh service (interval: %v, limit: %d, history_markets: %d)",
		cfg.Polymarket.PollInterval,
		cfg.Polymarket.Limit,
		cfg.Polymarket.HistoryMarkets,
	)

	ticker := time.NewTicker(cfg.Polymarket.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Refresh cycle failed: %v", err)
			if consecutiveFailures == 1 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && cfg.Telegram.Enabled && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial refresh cycle")
	handleCycleResult(runRefreshCycle(ctx, polyClient, store, extractor, dig, telegramClient, &latest, cfg))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled refresh cycle")
			handleCycleResult(runRefreshCycle(ctx, polyClient, store, extractor, dig, telegramClient, &latest, cfg))
		}
	}
}

func runRefreshCycle(
	ctx context.Context,
	polyClient *polymarket.Client,
	store *storage.Storage,
	extractor *entity.Extractor,
	dig *digest.Digest,
	telegramClient *telegram.Client,
	latest *atomic.Pointer[catalog.Catalog],
	cfg *config.Config,
) error {
	startTime := time.Now()
	logger.Info("Starting refresh cycle")

	logger.Debug("Fetching events from Polymarket API (categories: %v, limit: %d)", cfg.Polymarket.Categories, cfg.Polymarket.Limit)
	events, err := polyClient.FetchEvents(ctx, cfg.Polymarket.Categories, cfg.Polymarket.Limit)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	cat := catalog.New(events)
	logger.Info("Fetched %d events (%d markets)", len(events), cat.Len())

	if err := store.SaveCatalog(events); err != nil {
		logger.Warn("Failed to persist catalog: %v", err)
	}
	latest.Store(cat)

	if dig != nil {
		if err := runDigest(ctx, polyClient, dig, telegramClient, extractor, cat, cfg); err != nil {
			logger.Warn("Digest scan failed: %v", err)
		}
	}

	logger.Info("Refresh cycle completed in %v", time.Since(startTime))
	return nil
}

func runDigest(
	ctx context.Context,
	polyClient *polymarket.Client,
	dig *digest.Digest,
	telegramClient *telegram.Client,
	extractor *entity.Extractor,
	cat *catalog.Catalog,
	cfg *config.Config,
) error {
	window := models.Window(cfg.Graph.Window)
	histories := fetchHistories(ctx, polyClient, cat.TopByVolume(cfg.Digest.TopK), window, cfg.Polymarket.HistoryBatchSize)

	asm := graph.NewAssembler(cat, extractor)
	pairs, err := dig.Scan(asm, cat, histories, window)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		logger.Debug("No new correlation pairs above digest threshold")
		return nil
	}
	logger.Info("Digest found %d new correlation pair(s)", len(pairs))

	if telegramClient != nil {
		if err := telegramClient.SendDigest(pairs); err != nil {
			return fmt.Errorf("failed to send digest: %w", err)
		}
	}
	if err := dig.RecordSent(pairs); err != nil {
		return fmt.Errorf("failed to record digest pairs: %w", err)
	}
	return nil
}

// fetchHistories gathers Yes-token price histories for the given markets and
// re-keys the result by market id. Markets without a token or whose fetch
// failed are absent from the map.
func fetchHistories(
	ctx context.Context,
	polyClient *polymarket.Client,
	markets []*models.MarketRecord,
	window models.Window,
	batchSize int,
) map[string]models.PriceSeries {
	tokenByMarket := make(map[string]string, len(markets))
	tokens := make([]string, 0, len(markets))
	for _, m := range markets {
		if len(m.TokenIDs) == 0 {
			continue
		}
		tokenByMarket[m.ID] = m.TokenIDs[0]
		tokens = append(tokens, m.TokenIDs[0])
	}

	byToken := polyClient.GatherHistories(ctx, tokens, window, batchSize)

	histories := make(map[string]models.PriceSeries, len(byToken))
	for marketID, token := range tokenByMarket {
		if series, ok := byToken[token]; ok {
			histories[marketID] = series
		}
	}
	return histories
}
