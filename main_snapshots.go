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
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cloudwego/i18nagent/internal/pipeline"
)

var pruneKeep int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect and restore the working tree snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := openSnapshots()
		if err != nil {
			return err
		}
		all, err := snaps.List()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Fprintf(os.Stdout, "no snapshots in %s\n", snaps.Dir())
			return nil
		}
		header := lipgloss.NewStyle().Bold(true)
		id := lipgloss.NewStyle().Width(24)
		created := lipgloss.NewStyle().Width(22)
		run := lipgloss.NewStyle().Width(38)
		fmt.Fprintln(os.Stdout, header.Render(id.Render("ID")+created.Render("CREATED")+run.Render("RUN")+"FILES"))
		for _, s := range all {
			fmt.Fprintln(os.Stdout, id.Render(s.ID)+
				created.Render(s.CreatedAt.Local().Format("2006-01-02 15:04:05"))+
				run.Render(s.RunID)+
				fmt.Sprint(len(s.Files)))
		}
		return nil
	},
}

var snapshotsRestoreCmd = &cobra.Command{
	Use:   "restore [snapshot-id]",
	Short: "Restore the working tree to a snapshot",
	Long: `Writes every captured file back and deletes files created after the
snapshot was taken.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := openSnapshots()
		if err != nil {
			return err
		}
		res, err := snaps.Restore(cmd.Context(), args[0])
		if res != nil {
			fmt.Fprintf(os.Stdout, "restored %d files, deleted %d\n", res.Restored, len(res.Deleted))
			for _, d := range res.Deleted {
				fmt.Fprintf(os.Stdout, "  - %s\n", d)
			}
		}
		return err
	},
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := openSnapshots()
		if err != nil {
			return err
		}
		deleted, err := snaps.Prune(pruneKeep)
		for _, id := range deleted {
			fmt.Fprintf(os.Stdout, "deleted %s\n", id)
		}
		return err
	},
}

func init() {
	snapshotsPruneCmd.Flags().IntVar(&pruneKeep, "keep", 5, "Number of snapshots to keep")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsRestoreCmd)
	snapshotsCmd.AddCommand(snapshotsPruneCmd)
}

func openSnapshots() (*pipeline.SnapshotStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	return pipeline.NewSnapshotStore(root, cfg.BackupDir, pipeline.WithSkipDirs(cfg.ExcludedDirs()...))
}
