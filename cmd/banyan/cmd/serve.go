package cmd

import (
	"net/http"

	"banyan/core/auth"
	"banyan/core/config"
	"banyan/core/logger"
	"banyan/core/runtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serveCmd builds the runtime, initializes the lifecycle with the configured
// release, and blocks until the process is signalled.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the banyan runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := logger.WithComponent(cmd.Context(), "serve")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Info(ctx, "Configuration loaded", zap.String("environment", cfg.Environment))

		rt, err := runtime.New(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		// The lifecycle manager is admin-gated; the serve process acts as the
		// configured admin when stamping the initial release.
		adminCtx := auth.ContextWithPrincipal(ctx, auth.NewDefaultPrincipal(cfg.Authorities.Admin, "operator"))
		if err := rt.Lifecycle.Initialize(adminCtx, cfg.Release.Version, cfg.Release.Ref); err != nil {
			return err
		}

		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error(ctx, "Metrics listener failed", zap.Error(err))
				}
			}()
			defer srv.Close()
			logger.Info(ctx, "Metrics exposed", zap.String("addr", cfg.MetricsAddr))
		}

		logger.Info(ctx, "Banyan runtime started",
			zap.Uint64("version", rt.Lifecycle.Version()),
			zap.String("executor", rt.Kernel.Executor()))

		<-ctx.Done()
		logger.Info(ctx, "Banyan runtime stopping")
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadConfigFromFile(cfgFile)
	}
	return config.LoadConfig()
}
