// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudwego/i18nagent/internal/config"
	"github.com/cloudwego/i18nagent/internal/log"
	"github.com/cloudwego/i18nagent/version"
)

var (
	// Global flags
	configPath string
	rootDir    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "i18nagent",
	Short: "Internationalize a React project with i18next",
	Long: `i18nagent walks a React code base through discovery, analysis,
transformation, translation and locale emission until every user facing
string goes through i18next. The working tree is snapshotted first and
restored when the run does not complete.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of i18nagent",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "%s\n", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: "+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "C", "", "Project root (overrides the config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose mode")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Sync()
		os.Exit(1)
	}
}

// loadConfig reads the config and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.Root = rootDir
	}
	lv, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		lv = log.DebugLevel
	}
	log.SetLogLevel(lv)
	return cfg, nil
}
