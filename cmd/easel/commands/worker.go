package commands

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/easelkit/easel/internal/collector"
	"github.com/easelkit/easel/internal/config"
	"github.com/easelkit/easel/internal/host"
	"github.com/easelkit/easel/internal/lease"
	"github.com/easelkit/easel/internal/metrics"
	"github.com/easelkit/easel/internal/printer"
	"github.com/easelkit/easel/internal/scheduler"
	"github.com/easelkit/easel/pkg/backend"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one worker process",
	Long: `Run one worker process until interrupted.

The worker claims an instance from the backend (renewing its lease every
board tick), starts a Discord session for the assigned guild, and runs
the periodic drivers: board synchronization, lobby-link publishing and
queued member updates.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error(
			"Could not load configuration",
			err.Error(),
			[]string{"Check the path passed via --config", "Run 'easel check' to validate the file"},
		)
	}

	api := backend.New(cfg.Backend.URL, cfg.Backend.APIKey)
	if err := api.Ping(context.Background()); err != nil {
		return printer.Error(
			"Backend not reachable",
			err.Error(),
			[]string{"Verify backend.url and backend.api_key in " + configPath},
		)
	}

	marks := &collector.Collector{}
	factory := host.NewFactory(marks)
	mgr := lease.NewManager(
		api,
		adaptedFactory{factory},
		cfg.Worker.ID,
		cfg.Worker.PinnedInstance,
	)
	defer mgr.Shutdown()

	met := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Listen != "" {
		go serveMetrics(cfg.Metrics.Listen)
	}

	driver := scheduler.New(met,
		scheduler.BoardJob(mgr, api, marks, met, cfg.Intervals.BoardEvery),
		scheduler.LobbyLinksJob(mgr, api, cfg.Intervals.LobbyLinksEvery),
		scheduler.FlagsJob(mgr, marks, cfg.Intervals.FlagsEvery),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Printf("[Worker] received signal %v, shutting down gracefully", sig)
		cancel()
	}()

	printer.Info("Worker %s starting (backend: %s)\n", cfg.Worker.ID, cfg.Backend.URL)
	return driver.Start(runCtx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[Worker] metrics server: %v", err)
	}
}

// adaptedFactory binds the host factory to the lease manager's contract,
// mapping guild options onto the host's presentation configuration.
type adaptedFactory struct {
	inner *host.Factory
}

func (f adaptedFactory) Create(botToken string, opts backend.GuildOptions) (lease.RuntimeHost, error) {
	return f.inner.Create(botToken, host.Presentation{
		Prefix:  opts.Prefix,
		BotName: opts.BotName,
		Invite:  opts.Invite,
	}, host.Hooks{
		Ready: func() {
			log.Printf("[Worker] session ready for guild %s", opts.GuildID)
		},
	})
}
