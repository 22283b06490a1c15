package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"cinodeharvest/pkg/auth"
	"cinodeharvest/pkg/cache"
	"cinodeharvest/pkg/cinode"
	"cinodeharvest/pkg/config"
	errs "cinodeharvest/pkg/errors"
	"cinodeharvest/pkg/harvester"
	"cinodeharvest/pkg/logger"
	"cinodeharvest/pkg/ratelimit"
	"cinodeharvest/pkg/retry"
	"cinodeharvest/pkg/storage"
	"cinodeharvest/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Harvest command flags
	outputDir    string
	cacheDir     string
	cacheBackend string
	companyID    int
	concurrency  int
	rateLimit    int
	accountName  string
	notify       bool
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Download all attachments (default command)",
	Long: `Download the attachments of every customer, project and sub-contractor.

The access code is taken from, in order:
  - the stored credential named by --account
  - CINODE_ACCESS or api.access_code in the config file
  - the most recently stored credential (see 'cinodeharvest auth login')

A run stops at the first fatal error. When the daily request quota is
exhausted, run again the next day: cached responses and complete
directories are reused.`,
	Example: `  # Harvest into ./One Agency with default settings
  cinodeharvest

  # Harvest company 42 into /backup with at most 8 parallel tasks
  cinodeharvest harvest --company 42 --output /backup --concurrency 8

  # Share the response cache through redis
  CINODE_REDIS_ADDR=localhost:6379 cinodeharvest --cache-backend redis`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	for _, cmd := range []*cobra.Command{rootCmd, harvestCmd} {
		flags := cmd.Flags()
		flags.StringVarP(&outputDir, "output", "o", "", "output root directory")
		flags.StringVar(&cacheDir, "cache-dir", "", "response cache directory")
		flags.StringVar(&cacheBackend, "cache-backend", "", "response cache backend (disk or redis)")
		flags.IntVar(&companyID, "company", 0, "Cinode company id")
		flags.IntVar(&concurrency, "concurrency", -1, "maximum parallel tasks (0 means unbounded)")
		flags.IntVar(&rateLimit, "rate-limit", 0, "API requests per minute")
		flags.StringVarP(&accountName, "account", "a", "", "use a specific stored credential")
		flags.BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
	}
}

// commandLineFlags collects the flags that override configuration
func commandLineFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if cacheDir != "" {
		flags["cache-dir"] = cacheDir
	}
	if cacheBackend != "" {
		flags["cache-backend"] = cacheBackend
	}
	if companyID > 0 {
		flags["company"] = companyID
	}
	if cmd.Flags().Changed("concurrency") {
		flags["concurrency"] = concurrency
	}
	if rateLimit > 0 {
		flags["requests-per-minute"] = rateLimit
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commandLineFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("cinodeharvest starting")

	if err := resolveCredential(cfg); err != nil {
		return err
	}

	ui.PrintBanner()
	ui.PrintInfo("Company", strconv.Itoa(cfg.API.CompanyID))
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)
	ui.PrintInfo("Cache", cfg.Cache.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	token, err := cinode.Authenticate(ctx, httpClient, cfg.API.TokenURL, cfg.API.AccessCode)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	client := cinode.NewClient(token.AccessToken, cinode.Options{
		Timeout:    cfg.API.Timeout,
		Limiter:    ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		Retry:      retry.FromSettings(cfg.Retry, log),
		Logger:     log,
		HTTPClient: httpClient,
	})

	store, closeStore, err := cache.OpenStore(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open response cache: %w", err)
	}
	defer closeStore()

	h := harvester.New(
		client,
		cache.New(store, client, log),
		storage.NewWriter(cfg.Output.DefaultExtension, log),
		harvester.OptionsFromConfig(cfg, log),
	)

	ui.PrintHighlight("Harvesting attachments...")
	stats, err := h.Run(ctx)
	ui.PrintSummary("Run summary", stats.Fields())

	notifier := ui.NewNotifier(notify)
	if err != nil {
		if errs.IsQuota(err) {
			notifier.SendError("Harvest stopped", "daily API quota exhausted, run again tomorrow")
		} else {
			notifier.SendError("Harvest failed", err.Error())
		}
		return err
	}

	notifier.SendSuccess("Harvest complete", fmt.Sprintf("%d files written", stats.FilesWritten.Load()))
	return nil
}

// resolveCredential fills in the access code and, when the flag did not
// set one, the company id of a stored credential
func resolveCredential(cfg *config.Config) error {
	if accountName == "" && cfg.API.AccessCode != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	cred, err := manager.Resolve(accountName)
	if err != nil {
		ui.PrintError("No Cinode access code found", "run 'cinodeharvest auth login' or set CINODE_ACCESS")
		return err
	}

	cfg.API.AccessCode = cred.AccessCode
	if cred.CompanyID > 0 && companyID == 0 && os.Getenv("CINODE_COMPANY_ID") == "" {
		cfg.API.CompanyID = cred.CompanyID
	}
	logger.WithField("account", cred.Name).Info("Using stored credential")
	return nil
}
