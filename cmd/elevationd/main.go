// Copyright © 2025 Admin Road Engineering.

// Command elevationd serves the elevation query API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/admin-road-engineering/elevation/provider"
	"github.com/admin-road-engineering/elevation/serve"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Fatal("elevationd exited")
	}
}

var rootCmd = &cobra.Command{
	Use:   "elevationd",
	Short: "elevationd serves ground elevations sampled from AU/NZ survey campaigns",
	Long: `elevationd answers point, batch, line, and path elevation queries by
selecting the best available DEM campaign, sampling its raster tiles from
object storage, and falling back to external elevation APIs when the
archive has no coverage.

Configuration comes from a config file (--config), environment variables
prefixed with ELEV_, or both. Refer to https://github.com/spf13/viper for
precedence rules.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to config file (yaml)")
	flags.String("addr", ":8000", "listen address")
	flags.String("app_env", provider.EnvDevelopment, "production or development")
	flags.String("spatial_index_uri", "", "URI of the spatial index document (file:// or s3://)")
	flags.String("redis_addr", "", "redis address for the shared circuit-breaker store")
	flags.Bool("enable_au", true, "serve Australian campaigns")
	flags.Bool("enable_nz", true, "serve New Zealand campaigns")
	viper.BindPFlags(flags) //nolint:errcheck // static flag set
	viper.SetEnvPrefix("ELEV")
	viper.AutomaticEnv()
}

func loadConfig() (provider.Config, error) {
	cfg := provider.DefaultConfig()
	if f := viper.GetString("config"); f != "" {
		viper.SetConfigFile(f)
		if err := viper.ReadInConfig(); err != nil {
			return cfg, err
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	// Flat flags override the nested config keys they shadow.
	cfg.AppEnv = viper.GetString("app_env")
	if v := viper.GetString("spatial_index_uri"); v != "" {
		cfg.SpatialIndexURI = v
	}
	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	cfg.EnableAU = viper.GetBool("enable_au")
	cfg.EnableNZ = viper.GetBool("enable_nz")
	return cfg, nil
}

func run(ctx context.Context, cfg provider.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("setting up...")
	p, err := provider.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := &http.Server{
		Addr:              viper.GetString("addr"),
		Handler:           serve.NewServer(p, logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
