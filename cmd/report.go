package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/signalnine/qrscale/internal/report"
)

func newReportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Compare decoders from a stored run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runDir := filepath.Join(cfg.OutputsDir, "latest")
			if len(args) > 0 {
				runDir = args[0]
			}
			resolved, err := filepath.EvalSymlinks(runDir)
			if err != nil {
				return errors.Wrap(err, "resolving run dir")
			}
			return report.Generate(resolved, format, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, markdown, json)")
	return cmd
}
