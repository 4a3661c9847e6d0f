package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"yashubustudio/semgraph/internal/config"
	"yashubustudio/semgraph/internal/logger"
	"yashubustudio/semgraph/semgraph"
)

var (
	log *logrus.Logger

	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "semgraph",
	Short: "semgraph turns text into a clustered 3-D semantic graph",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func main() {
	log = logger.Get()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the effective configuration and applies its log level
// unless --log-level was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		logger.SetLevel(cfg.Log.Level)
	}
	return cfg, nil
}

// newService brings up the embedder and the pipeline around it.
func newService(cfg *config.Config) (*semgraph.Service, error) {
	log.WithFields(logrus.Fields{
		"backend": cfg.Embedder.Backend,
		"model":   cfg.Embedder.ModelPath,
	}).Info("Loading embedding model")
	embedder, err := semgraph.NewEmbedder(cfg.Embedder, log)
	if err != nil {
		return nil, err
	}
	svc, err := semgraph.NewService(embedder, cfg.Analysis, log)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	return svc, nil
}
