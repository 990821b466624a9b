package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/composite-gen/internal/assets"
	"github.com/ironsheep/composite-gen/internal/config"
	"github.com/ironsheep/composite-gen/internal/engine"
	"github.com/ironsheep/composite-gen/internal/segment"
)

func newGenerateCmd() *cobra.Command {
	cfg := config.Default()
	var configFile string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate composite images and their bounding boxes",
		Long: `generate loads the backgrounds and objects of --composite-dir, builds --images
scenes and writes them with a bounding_boxes.labels manifest to --out-directory.
Unless --skip-upload is set every image is uploaded with its boxes; the project
API key is read from ` + config.EnvAPIKey + `.

Settings from --config are applied first; flags given on the command line win.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, cfg, configFile); err != nil {
				return err
			}
			res, err := runGenerate(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d images (%d skipped), manifest %s\n",
				res.Generated, res.Skipped, res.ManifestPath)
			return nil
		},
	}

	bindFlags(cmd.Flags(), cfg)
	cmd.Flags().StringVar(&configFile, "config", "", "YAML configuration file")
	return cmd
}

// resolveConfig layers the config file under the flags already parsed into cfg, then
// reads the environment and validates the result.
func resolveConfig(cmd *cobra.Command, cfg *config.Config, configFile string) error {
	if configFile != "" {
		changed := make(map[string]string)
		cmd.Flags().Visit(func(f *pflag.Flag) {
			if f.Name != "config" {
				changed[f.Name] = f.Value.String()
			}
		})
		if err := config.LoadFile(configFile, cfg); err != nil {
			return err
		}
		for name, value := range changed {
			if err := cmd.Flags().Set(name, value); err != nil {
				return fmt.Errorf("failed to reapply --%s: %w", name, err)
			}
		}
	}
	cfg.ApplyEnv(lookupEnv)
	return cfg.Validate()
}

func runGenerate(ctx context.Context, cfg *config.Config, log *slog.Logger) (*engine.Result, error) {
	remover, err := segment.FromCommand(cfg.BgRemovalCommand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	store, err := assets.Load(ctx, assets.Options{
		Dir:     cfg.CompositeDir,
		Labels:  assets.ParseLabels(cfg.Labels),
		RawDir:  cfg.RawObjectDir,
		Remover: remover,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	g, err := engine.New(engine.Options{Config: cfg, Store: store, Logger: log})
	if err != nil {
		return nil, err
	}
	return g.Run(ctx)
}
