package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/api"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/balance"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/exec"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/gates"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/market"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/reconciliation"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/risk"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/runtime"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/scan"
	sig "github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/state"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/config"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/db"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/binance/futures"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/paper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	profiles, err := gates.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		log.Fatalf("profiles: %v", err)
	}
	log.Printf("[main] active gate profile: %s", profiles.Active)

	bus := events.NewBus()
	metrics := monitor.NewMetrics()
	store := state.NewManager(conn)

	limits := risk.Limits{
		RiskPerTradeUsd:   cfg.RiskPerTradeUsd,
		MaxAllowedRiskUsd: cfg.MaxAllowedRiskUsd,
		MaxPositions:      cfg.MaxPositions,
		LotStep:           cfg.LotStep,
		MinQty:            cfg.MinQty,
	}
	ledger := risk.NewLedger(limits, cfg.InitialBalanceUsd)

	kill := runtime.NewKillSwitch()
	rt := runtime.New(ledger, kill, bus, store)

	// Venue wiring. Mock mode runs the whole core against a local walk.
	var (
		gateway common.Gateway
		lister  common.PositionLister
		reader  common.BalanceReader
		feed    market.Feed
	)
	if cfg.UseMockFeed || cfg.BinanceAPIKey == "" {
		log.Printf("[main] mock mode: paper gateway and random-walk feed")
		start := make(map[string]float64, len(cfg.Symbols))
		for _, s := range cfg.Symbols {
			start[s] = 1000
		}
		feed = market.NewMockFeed(start, time.Second, bus, metrics)
		pg := paper.New(paper.Config{
			FeeRate:     cfg.FeeRate,
			SlippageBps: cfg.SlippageBuffer * 10000,
			LatencyMs:   20,
		})
		gateway = pg
		lister = pg
	} else {
		client := futures.NewClient(futures.Config{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			Testnet:   cfg.BinanceTestnet,
		})
		client.StartTimeSync(ctx)
		if err := client.StreamUserData(ctx, func(fill common.Fill) {
			store.UpdateOrderStatus(fill.ExchangeOrderID, "filled")
			bus.Publish(events.EventOrderFilled, fill)
		}); err != nil {
			log.Printf("[main] user stream unavailable, polling only: %v", err)
		}
		gateway = client
		lister = client
		reader = client
		feed = market.NewBinanceFeed(client, cfg.Symbols, bus, metrics)
	}

	balances := balance.NewManager("USDT", cfg.InitialBalanceUsd, reader, ledger.SetBalance)
	balances.Start(ctx, time.Minute)
	log.Printf("[main] sizing balance %.2f USDT", balances.Balance())

	diags := scan.NewFeedDiagnostics(3 * time.Duration(cfg.ScanIntervalMs) * time.Millisecond)
	ticks, unsubTicks := bus.Subscribe(events.EventPriceTick, 256)
	defer unsubTicks()
	go func() {
		for msg := range ticks {
			if tick, ok := msg.(events.PriceTick); ok {
				diags.ObserveTick(tick.Symbol)
			}
		}
	}()

	signals := sig.NewQueue()

	execClient := exec.NewClient(gateway, cfg.MaxOrdersPerMin,
		time.Duration(cfg.FillTimeoutMs)*time.Millisecond, bus, metrics)
	scanner := scan.New(scan.Config{
		Symbols:   cfg.Symbols,
		Interval:  time.Duration(cfg.ScanIntervalMs) * time.Millisecond,
		Runtime:   rt,
		Ledger:    ledger,
		Exec:      execClient,
		Profile:   profiles.ActiveProfile(),
		Diags:     diags,
		Source:    signals,
		Trailer:   risk.NewTrailer(cfg.TrailingOffsetPct),
		Feed:      feed,
		Store:     store,
		Metrics:   metrics,
		Reprotect: cfg.ReprotectOnTrail,
	})
	scanner.Start(ctx)
	reconciliation.New(lister, rt, store, 30*time.Second).Start(ctx)

	feed.Start(ctx)

	router := api.NewRouter(api.Deps{
		Runtime:   rt,
		Ledger:    ledger,
		Scanner:   scanner,
		Store:     store,
		Metrics:   metrics,
		Bus:       bus,
		Signals:   signals,
		JWTSecret: cfg.JWTSecret,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("[main] api listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] server shutdown: %v", err)
	}
}
