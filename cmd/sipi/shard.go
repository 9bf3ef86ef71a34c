package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/greut/sipi/shard"
)

func NewShardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shard",
		Short: "Inspect and migrate the shard tree.",
	}

	cmd.AddCommand(newShardHashCommand())
	cmd.AddCommand(newShardCheckCommand())
	cmd.AddCommand(newShardMigrateCommand())
	cmd.AddCommand(newShardResumeCommand())
	cmd.AddCommand(newShardRollbackCommand())
	cmd.AddCommand(newShardAddCommand())

	return cmd
}

// shardRoot is the given directory or the disk root of the configuration.
func shardRoot(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadConfig(configFile)
	if err != nil {
		return "", err
	}
	return cfg.Images.Root, nil
}

func newShardHashCommand() *cobra.Command {
	var levels int

	cmd := &cobra.Command{
		Use:   "hash <name>...",
		Short: "Print the shard letters of file names.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if levels < 0 || levels > shard.MaxLevels {
				return shard.ErrLevels
			}
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", shard.Hash(name, shard.MaxLevels), shard.Path("", name, levels))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&levels, "levels", "l", 2, "Depth used to print the path")

	return cmd
}

func newShardCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [root]",
		Short: "Print the depth of a shard tree.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := shardRoot(args)
			if err != nil {
				return err
			}
			engine, err := shard.New(root)
			if err != nil {
				return err
			}
			levels, err := shard.CheckLevels(root)
			if err != nil {
				return err
			}
			pending, err := engine.Pending()
			if err != nil {
				return err
			}

			out := struct {
				Root    string        `json:"root"`
				Levels  int           `json:"levels"`
				Pending *shard.Header `json:"pending"`
			}{root, levels, pending}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newShardMigrateCommand() *cobra.Command {
	var levels int

	cmd := &cobra.Command{
		Use:   "migrate [root]",
		Short: "Change the depth of a shard tree.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, args, func(e *shard.Engine) error {
				return e.Migrate(cmd.Context(), levels)
			})
		},
	}

	cmd.Flags().IntVarP(&levels, "levels", "l", 2, "Target depth")
	_ = cmd.MarkFlagRequired("levels")

	return cmd
}

func newShardResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [root]",
		Short: "Finish an interrupted migration.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, args, func(e *shard.Engine) error {
				return e.Resume(cmd.Context())
			})
		},
	}
}

func newShardRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [root]",
		Short: "Undo an interrupted migration.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, args, func(e *shard.Engine) error {
				return e.Rollback(cmd.Context())
			})
		},
	}
}

func newShardAddCommand() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Copy or move files into the shard tree.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var roots []string
			if root != "" {
				roots = []string{root}
			}
			return withEngine(cmd, roots, func(e *shard.Engine) error {
				for _, file := range args {
					path, err := e.Place(cmd.Context(), file)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&root, "root", "r", "", "Shard tree, the configured one by default")

	return cmd
}

func withEngine(cmd *cobra.Command, args []string, fn func(e *shard.Engine) error) error {
	root, err := shardRoot(args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	engine, err := shard.New(root, shard.WithObserver(func(s shard.Step) {
		debug("%s", s)
	}))
	if err != nil {
		return err
	}
	if err := fn(engine); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d levels\n", engine.Root(), engine.Levels())
	return nil
}
