package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/signalnine/qrscale/internal/dataset"
	"github.com/signalnine/qrscale/internal/decoder"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets and decoder availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			names, err := dataset.List(cfg.DatasetsDir)
			if err != nil {
				return err
			}
			fmt.Printf("Datasets (%s):\n", cfg.DatasetsDir)
			if len(names) == 0 {
				fmt.Println("  (none)")
			}
			for _, n := range names {
				fmt.Printf("  - %s (%d images)\n", n, dataset.CountImages(filepath.Join(cfg.DatasetsDir, n)))
			}
			fmt.Println("\nDecoders:")
			for _, n := range decoder.Names() {
				if err := decoder.Available(n); err != nil {
					fmt.Printf("  - %s: unavailable (%v)\n", n, err)
					continue
				}
				fmt.Printf("  - %s: available\n", n)
			}
			return nil
		},
	}
}
