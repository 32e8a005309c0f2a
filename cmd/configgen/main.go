package main

import (
	"flag"

	"github.com/danmuck/edgetrack/internal/config"
	"github.com/danmuck/edgetrack/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	kind := flag.String("kind", "service", "config kind: service|collector")
	output := flag.String("output", "cmd/trackctl/config.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "cmd/trackctl/config.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal().Err(err).Str("path", *input).Msg("invalid config")
		}
		log.Info().Str("path", *input).Int("targets", len(cfg.Targets)).Msg("validated config")
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template")
	}
	log.Info().Str("kind", *kind).Str("path", *output).Msg("wrote config template")
}
