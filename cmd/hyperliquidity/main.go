package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/AlliedToasters/hyperliquidity/internal/audit"
	"github.com/AlliedToasters/hyperliquidity/internal/exchange"
	"github.com/AlliedToasters/hyperliquidity/internal/infra"
	"github.com/AlliedToasters/hyperliquidity/internal/orchestrator"
	"github.com/AlliedToasters/hyperliquidity/internal/transport"
	"github.com/AlliedToasters/hyperliquidity/internal/walletsecret"
)

func main() {
	app := &cli.App{
		Name:  "hyperliquidity",
		Usage: "off-chain HIP-2 market maker for a single Hyperliquid spot pair",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "start quoting the configured coin",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to config.yaml",
						Value: infra.ResolveConfigPath(),
					},
				},
				Action: runCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("hyperliquidity exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func runCmd(c *cli.Context) error {
	cfg, err := infra.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	cfg.LogSafe(logger)

	workDir := infra.GetWorkspaceDir()
	mode := strings.ToLower(cfg.Trading.Mode)
	if mode == "" {
		mode = "paper"
	}
	dataDir := filepath.Join(workDir, "data", mode)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	defer unlock()

	trail, err := audit.Open(filepath.Join(dataDir, "audit.db"))
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	defer trail.Close()

	address := cfg.Wallet.Address
	var wallet *walletsecret.Wallet
	if exchange.Mode(cfg.Trading.Mode) == exchange.ModeMainnet {
		wallet, err = walletsecret.Load(address)
		if err != nil {
			return fmt.Errorf("load wallet secret: %w", err)
		}
		defer wallet.Wipe()
	}

	factory := exchange.NewFactory(exchange.Mode(cfg.Trading.Mode), address)
	client, err := factory.CreateClient()
	if err != nil {
		return fmt.Errorf("create exchange client: %w", err)
	}

	ws := transport.NewClient(cfg.Market.WSURL, address)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws.Start(ctx)
	defer ws.Stop()

	orchCfg := orchestrator.Config{
		Coin:              cfg.Market.Coin,
		StartPx:           cfg.Strategy.StartPx,
		NOrders:           cfg.Strategy.NOrders,
		OrderSz:           cfg.Strategy.OrderSz,
		NSeededLevels:     cfg.Strategy.NSeededLevels,
		TickSize:          cfg.Strategy.TickSize,
		IntervalS:         cfg.Tuning.IntervalS,
		DeadZoneBps:       cfg.Tuning.DeadZoneBps,
		PriceToleranceBps: cfg.Tuning.PriceToleranceBps,
		SizeTolerancePct:  cfg.Tuning.SizeTolerancePct,
		ReconcileEvery:    cfg.Tuning.ReconcileEvery,
		MinNotional:       cfg.Tuning.MinNotional,
		AllocatedToken:    cfg.Allocation.AllocatedToken,
		AllocatedUSDC:     cfg.Allocation.AllocatedUSDC,
	}

	orch := orchestrator.New(orchCfg, address, client, ws, ws.Inbox, time.Now, trail)

	slog.Info("hyperliquidity starting", slog.String("coin", cfg.Market.Coin), slog.String("mode", cfg.Trading.Mode))

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("orchestrator run: %w", err)
	}

	slog.Info("hyperliquidity shutting down")
	return nil
}
