package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/signalnine/qrscale/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("qrscale failed")
		os.Exit(1)
	}
}
