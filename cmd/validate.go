package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/signalnine/qrscale/internal/dataset"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dataset]",
		Short: "Check a dataset's images and annotations",
		Long: "Load a dataset the same way run does and list every image without an annotation, " +
			"annotation without an image, malformed annotation and unreadable image. " +
			"The argument is a dataset name under datasets_dir or a path to a dataset directory.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			target := cfg.Dataset
			if len(args) > 0 {
				target = args[0]
			}
			if target == "" {
				return errors.New("no dataset given")
			}

			ds, err := loadDatasetArg(cfg.DatasetsDir, target)
			if err != nil {
				var derr *dataset.Error
				if errors.As(err, &derr) {
					fmt.Printf("%s: %d problem(s)\n", derr.Root, len(derr.Problems))
					for _, p := range derr.Problems {
						fmt.Printf("  %s: %s\n", p.Path, p.Reason)
					}
				}
				return err
			}

			withSize := 0
			for s := range ds.Samples() {
				if s.ModuleSizePx > 0 {
					withSize++
				}
			}
			fmt.Printf("%s: OK, %d samples (%d with module size)\n", ds.Root, ds.Len(), withSize)
			return nil
		},
	}
}

// loadDatasetArg treats arg as a directory when one exists at that path and
// as a dataset name otherwise.
func loadDatasetArg(datasetsDir, arg string) (*dataset.Dataset, error) {
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return dataset.Load(arg)
	}
	return dataset.Open(datasetsDir, arg)
}
