package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/signalnine/qrscale/internal/web"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the interactive web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			levels, err := cfg.Scales.Levels()
			if err != nil {
				return err
			}
			if logLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			srv := web.New(web.Options{
				DatasetsDir:      cfg.DatasetsDir,
				OutputsDir:       cfg.OutputsDir,
				Decoders:         cfg.Decoders,
				Scales:           levels,
				Iterations:       cfg.Iterations,
				BinStepPx:        cfg.ModuleBinStepPx,
				ParetoMinSamples: cfg.ParetoMinSamples,
				MaxUploadBytes:   cfg.Server.MaxUploadMB << 20,
			})
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config server.addr)")
	return cmd
}
