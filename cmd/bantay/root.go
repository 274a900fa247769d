package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/config"
	"github.com/bantay-ai/bantay/internal/redact"
)

// app carries what every subcommand shares.
type app struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "bantay",
		Short: "Incident report classifier",
		Long: `bantay classifies barangay incident reports into one of 15 categories
using an ONNX model over a fixed 544-feature encoding of the report text.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "bantay.yaml", "path to bantay config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(a),
		newClassifyCmd(a),
		newFeaturesCmd(),
		newStatusCmd(a),
		newCategoriesCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	return nil
}

// loadEngine builds the ONNX-backed engine and loads the model. A failed
// load is logged by the engine and leaves it not ready.
func (a *app) loadEngine() *classifier.Engine {
	backend := classifier.NewONNXBackend(classifier.RuntimeSettings{
		LibraryPath:  a.cfg.Runtime.LibraryPath,
		IntraThreads: a.cfg.Model.IntraThreads,
		InterThreads: a.cfg.Model.InterThreads,
		MaxSessions:  a.cfg.Model.MaxSessions,
	})
	engine := classifier.NewEngine(backend, a.cfg.Model.Path)
	if !engine.Load() {
		redact.Logf("bantay: model not ready: %v", engine.LoadErr())
	}
	return engine
}
