package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/browser"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/campaign"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/config"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/pacing"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/progress"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/queries"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/store"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/types"
)

func runCampaigns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("no accounts configured in %s", configPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	if !daemon {
		return runPass(ctx, cfg, ledger)
	}

	// Daemon mode: repeat the full pass on the configured interval with
	// jitter, picking up config edits between passes.
	var cfgMu sync.Mutex
	current := cfg
	stopWatch, err := config.Watch(configPath, logger, func(fresh *config.Config) {
		cfgMu.Lock()
		current = fresh
		cfgMu.Unlock()
	})
	if err != nil {
		logger.Warn("config watch unavailable", zap.Error(err))
	} else {
		defer stopWatch()
	}

	for {
		cfgMu.Lock()
		passCfg := current
		cfgMu.Unlock()

		if err := runPass(ctx, passCfg, ledger); err != nil {
			logger.Error("pass failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}

		interval := time.Duration(passCfg.Runner.DaemonIntervalMin) * time.Minute
		if interval <= 0 {
			interval = 24 * time.Hour
		}
		jitter := time.Duration(rand.Int63n(int64(time.Duration(passCfg.Runner.DaemonJitterMin)*time.Minute) + 1))
		logger.Info("pass complete, sleeping",
			zap.Duration("interval", interval), zap.Duration("jitter", jitter))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval + jitter):
		}
	}
}

// runPass runs both device-class campaigns for every account. Accounts fan
// out with bounded parallelism; each account's campaigns share nothing, so
// the only coordination needed is the ledger's own lock.
func runPass(ctx context.Context, cfg *config.Config, ledger *store.Ledger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Runner.MaxParallelAccounts)

	for _, acct := range cfg.Accounts {
		g.Go(func() error {
			if err := runAccount(gctx, cfg, ledger, acct); err != nil {
				// One broken account never stops the pass.
				logger.Error("account run failed",
					zap.String("account", acct.Email), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// runAccount runs the desktop campaign, then the mobile one, against one
// browser instance bound to the account's profile.
func runAccount(ctx context.Context, cfg *config.Config, ledger *store.Ledger, acct config.AccountConfig) error {
	mgr := browser.NewManager(cfg.Browser)
	if err := mgr.Start(ctx, acct.ProfileDir); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			logger.Warn("browser shutdown", zap.Error(err))
		}
	}()

	for _, device := range []types.DeviceClass{types.DeviceDesktop, types.DeviceMobile} {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := runCampaign(ctx, cfg, mgr, acct, device)
		if recErr := ledger.Record(res); recErr != nil {
			logger.Warn("ledger write failed", zap.Error(recErr))
		}
		if err != nil {
			if errors.Is(err, campaign.ErrDriverGone) {
				// The session is unusable; a fresh browser is the only
				// fix, so skip the remaining device class too.
				logger.Warn("browser session lost, skipping remaining campaigns",
					zap.String("account", acct.Email), zap.String("device", string(device)))
			}
			return err
		}
	}
	return nil
}

func runCampaign(ctx context.Context, cfg *config.Config, mgr *browser.Manager, acct config.AccountConfig, device types.DeviceClass) (types.CampaignResult, error) {
	driver, err := mgr.NewDriver(ctx, device)
	if err != nil {
		return types.CampaignResult{
			Account:    acct.Email,
			Device:     device,
			Status:     types.StatusAborted,
			StartedAt:  time.Now(),
			FinishedAt: time.Now(),
		}, fmt.Errorf("%w: %w", campaign.ErrDriverGone, err)
	}

	seed := time.Now().UnixNano()
	planner := queries.NewPlanner(queries.BuildSources(cfg.Sources), seed)
	source := progress.NewBrowserSource(driver, cfg.Sources.ProgressURL, cfg.Browser.NavigationTimeout())
	tracker := progress.NewTracker(source)
	pacer := pacing.NewController(cfg.Pacing, seed)
	executor := campaign.NewExecutor(driver, device, cfg.Campaign.AttemptRetries)

	orch := campaign.New(planner, tracker, pacer, executor, driver, campaign.Options{
		Account:              acct.Email,
		Device:               device,
		WallClockBudget:      cfg.Campaign.WallClockBudget(),
		CompletionRecheck:    time.Duration(cfg.Campaign.CompletionRecheckSec) * time.Second,
		ExtraAttemptsMobile:  cfg.Campaign.ExtraAttemptsMobile,
		ExtraAttemptsDesktop: cfg.Campaign.ExtraAttemptsDesktop,
		MaxSupplementBatches: cfg.Campaign.MaxSupplementBatches,
	})
	return orch.Run(ctx)
}
