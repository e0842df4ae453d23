package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalnine/qrscale/internal/dataset"
)

var defaultSynthPayloads = []string{
	"HELLO",
	"https://example.com/qr",
	"0123456789",
	"The quick brown fox jumps over the lazy dog",
}

func newSynthCmd() *cobra.Command {
	var opts dataset.SynthOptions
	cmd := &cobra.Command{
		Use:   "synth <name>",
		Short: "Generate a synthetic QR dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(opts.Payloads) == 0 {
				opts.Payloads = defaultSynthPayloads
			}
			ds, err := dataset.Generate(cfg.DatasetsDir, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d samples to %s\n", ds.Len(), ds.Root)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&opts.Payloads, "payload", nil, "payload to encode (repeatable)")
	cmd.Flags().IntVar(&opts.ModulePx, "module-px", 8, "pixels per module")
	cmd.Flags().IntVar(&opts.QuietZone, "quiet-zone", 4, "quiet zone width in modules (0 means the default of 4)")
	cmd.Flags().StringVar(&opts.Format, "format", "jpg", "image format (jpg, png)")
	return cmd
}
