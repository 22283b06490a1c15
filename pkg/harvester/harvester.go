package harvester

import (
	"context"
	"path/filepath"
	"time"

	"cinodeharvest/internal/reconcile"
	"cinodeharvest/pkg/cache"
	"cinodeharvest/pkg/cinode"
	"cinodeharvest/pkg/config"
	errs "cinodeharvest/pkg/errors"
	"cinodeharvest/pkg/logger"
	"cinodeharvest/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// Options configures a Harvester
type Options struct {
	Endpoints cinode.Endpoints
	// OutputDir is the root of the output tree
	OutputDir          string
	SubContractorsDir  string
	InHouseProjectsDir string
	// Concurrency caps the tasks in flight; 0 means one goroutine per task
	Concurrency int
	ClaimBuffer int
	Logger      logger.Logger
}

// OptionsFromConfig maps the configuration onto harvester options
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		Endpoints:          cinode.NewEndpoints(cfg.API.BaseURL, cfg.API.CompanyID),
		OutputDir:          cfg.Output.BaseDirectory,
		SubContractorsDir:  cfg.Output.SubContractorsDir,
		InHouseProjectsDir: cfg.Output.InHouseProjectsDir,
		Concurrency:        cfg.Download.Concurrency,
		ClaimBuffer:        cfg.Download.ClaimBuffer,
		Logger:             log,
	}
}

// Harvester walks customers, projects and sub-contractors and writes
// their attachments below the output root
type Harvester struct {
	client APIClient
	cache  *cache.Cache
	writer *storage.Writer
	opts   Options
	logger logger.Logger
	stats  *Stats
}

// New creates a Harvester
func New(client APIClient, c *cache.Cache, w *storage.Writer, opts Options) *Harvester {
	if opts.SubContractorsDir == "" {
		opts.SubContractorsDir = "_Sub Contractors"
	}
	if opts.InHouseProjectsDir == "" {
		opts.InHouseProjectsDir = "_In House Projects"
	}
	if opts.ClaimBuffer <= 0 {
		opts.ClaimBuffer = reconcile.DefaultCapacity
	}

	return &Harvester{
		client: client,
		cache:  c,
		writer: w,
		opts:   opts,
		logger: logger.OrGlobal(opts.Logger).WithField("component", "harvester"),
		stats:  &Stats{},
	}
}

// Run harvests everything once. Customer and sub-contractor tasks run
// concurrently while claims are reconciled; unclaimed projects are
// written to the in-house bucket afterwards. The first fatal error halts
// the client, cancels the remaining tasks and is returned.
func (h *Harvester) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	logger.LogComponentStart(h.logger, "harvester", map[string]interface{}{
		"api_root":    h.opts.Endpoints.Root,
		"output_dir":  h.opts.OutputDir,
		"concurrency": h.opts.Concurrency,
	})

	err := h.run(ctx)
	if err != nil {
		h.halt(err)
	}

	metrics := h.stats.Fields()
	metrics["duration"] = time.Since(start)
	logger.LogMetrics(h.logger, "harvest", metrics)

	reason := "completed"
	if err != nil {
		reason = err.Error()
	}
	logger.LogComponentStop(h.logger, "harvester", reason)
	return h.stats, err
}

func (h *Harvester) run(ctx context.Context) error {
	customers, err := cache.GetOrFetch[[]cinode.Customer](ctx, h.cache, h.opts.Endpoints.Customers())
	if err != nil {
		return err
	}
	allProjects, err := cache.GetOrFetch[[]cinode.ProjectDetailed](ctx, h.cache, h.opts.Endpoints.Projects())
	if err != nil {
		return err
	}
	subContractors, err := cache.GetOrFetch[[]cinode.SubContractor](ctx, h.cache, h.opts.Endpoints.SubContractors())
	if err != nil {
		return err
	}

	h.logger.InfoWithFields("Harvest started", map[string]interface{}{
		"customers":       len(customers),
		"projects":        len(allProjects),
		"sub_contractors": len(subContractors),
	})

	rec := reconcile.New(h.opts.ClaimBuffer, h.logger)
	producers := make([]*reconcile.Producer, len(customers))
	for i := range customers {
		producers[i] = rec.Producer()
	}

	type drainResult struct {
		remaining []cinode.ProjectDetailed
		err       error
	}
	drained := make(chan drainResult, 1)
	go func() {
		remaining, err := rec.Drain(ctx, allProjects)
		drained <- drainResult{remaining: remaining, err: err}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if h.opts.Concurrency > 0 {
		g.SetLimit(h.opts.Concurrency)
	}

	for i, customer := range customers {
		customer, producer := customer, producers[i]
		g.Go(h.task(func() error {
			defer producer.Close()
			return h.harvestCustomer(gctx, customer, producer)
		}))
	}

	for _, sub := range subContractors {
		if len(sub.Attachments) == 0 {
			continue
		}
		sub := sub
		g.Go(h.task(func() error {
			return h.harvestSubContractor(gctx, sub)
		}))
	}

	waitErr := g.Wait()
	result := <-drained
	if waitErr != nil {
		return waitErr
	}
	if result.err != nil {
		return result.err
	}

	unclaimed := reconcile.Unclaimed(result.remaining)
	if len(unclaimed) == 0 {
		return nil
	}

	h.logger.InfoWithFields("Writing unclaimed projects", map[string]interface{}{
		"projects": len(unclaimed),
	})
	h.stats.InHouseProjects.Add(int64(len(unclaimed)))
	return h.harvestProjects(ctx, unclaimed, filepath.Join(h.opts.OutputDir, h.opts.InHouseProjectsDir))
}

// task halts the client as soon as fn fails, before the group cancels
func (h *Harvester) task(fn func() error) func() error {
	return func() error {
		err := fn()
		if err != nil {
			h.halt(err)
		}
		return err
	}
}

func (h *Harvester) halt(err error) {
	if !errs.IsFatal(err) {
		return
	}
	h.client.Halt(err)
}

// Stats returns the counters of the current or last run
func (h *Harvester) Stats() *Stats {
	return h.stats
}
