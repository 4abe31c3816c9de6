package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"repoinsight/config"
	"repoinsight/internal/ghclient"
	"repoinsight/internal/llm"
	"repoinsight/internal/models"
	"repoinsight/internal/workflow"
	"repoinsight/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "repoinsight",
		Short:         "Analyze a source-code repository's structure and activity",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		cfgPath string
		owner   string
		repo    string
		outDir  string
	)
	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full analysis workflow and write a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, cfgPath, owner, repo, outDir)
		},
	}
	analyze.Flags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the configuration file")
	analyze.Flags().StringVar(&owner, "owner", "", "repository owner (overrides config and GITHUB_REPO_OWNER)")
	analyze.Flags().StringVar(&repo, "repo", "", "repository name (overrides config and GITHUB_REPO_NAME)")
	analyze.Flags().StringVarP(&outDir, "output", "o", "", "output directory (overrides config and OUTPUT_DIR)")

	root.AddCommand(analyze)
	return root
}

func runAnalyze(cmd *cobra.Command, cfgPath, owner, repo, outDir string) error {
	// Credentials may live in a local .env file; its absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if owner != "" {
		cfg.GitHub.Owner = owner
	}
	if repo != "" {
		cfg.GitHub.Repo = repo
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}

	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return fmt.Errorf("no target repository: set --owner/--repo, the github section of %s, or GITHUB_REPO_OWNER/GITHUB_REPO_NAME", cfgPath)
	}

	remote := ghclient.New(cfg.GitHub.Token, cfg.GitHub.CacheSize)
	reasoner, err := llm.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("initializing reasoning service: %w", err)
	}

	ref := models.RepoRef{Owner: cfg.GitHub.Owner, Name: cfg.GitHub.Repo}
	coordinator := workflow.NewCoordinator(remote, reasoner, cfg.Analysis)

	report, err := coordinator.Run(cmd.Context(), ref)
	if err != nil {
		return err
	}

	path, err := writeReport(cfg.Output.Dir, ref, report)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	logrus.Infof("Analysis complete")
	logrus.Infof("Output saved to: %s", path)
	logrus.Infof("Services found: %d", len(report.Repository.Services))
	logrus.Infof("Open issues: %d", report.Issues.Summary.TotalOpenIssues)
	logrus.Infof("Connections: %d", len(report.Repository.Connections))
	return nil
}

// loadConfig initializes logging as early as possible: defaults first so
// config-load problems are already logged in the configured style.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		logrus.Warnf("Config file %s not found, using defaults", path)
	}
	logging.Init(cfg.Logging)
	return cfg, nil
}

// writeReport persists the report as indented JSON under dir, named
// <owner>_<repo>_<timestamp>.json.
func writeReport(dir string, ref models.RepoRef, report *models.FinalReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s.json", ref.Owner, ref.Name, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
