package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"wavebatch/internal/export"
)

func newExportTagsCommand(cmdCtx *commandContext) *cobra.Command {
	var destFlag string
	var shardFlag int

	cmd := &cobra.Command{
		Use:   "export-tags",
		Short: "Flatten converted artifacts into sharded CSV tag tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger()
			if err != nil {
				return err
			}

			dest := destFlag
			if dest == "" {
				dest = filepath.Join(cfg.Paths.OutputDir, "tags")
			}

			exporter := &export.Exporter{ShardSize: shardFlag, Logger: logger}
			exported, err := exporter.Run(cmd.Context(), cfg.Paths.OutputDir, dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d artifacts to %s\n", exported, dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&destFlag, "dest", "", "Destination directory for part files (default <output_dir>/tags)")
	cmd.Flags().IntVar(&shardFlag, "shard-size", export.DefaultShardSize, "Rows per part file")
	return cmd
}
