package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pkt.systems/cellpad/internal/appconfig"
	"pkt.systems/cellpad/internal/persist"
	"pkt.systems/pslog"
)

func newListCmd() *cobra.Command {
	var cfgPath string
	var dir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notebooks under the notebook directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root := dir
			if root == "" {
				cfg, err := appconfig.Load(cfgPath)
				if err != nil {
					return err
				}
				root = cfg.NotebookDir
			}
			store, err := persist.NewStoreWithLogger(root, pslog.Ctx(ctx))
			if err != nil {
				return err
			}
			models, err := store.List(ctx)
			if err != nil {
				return err
			}
			pslog.Ctx(ctx).Debug("notebooks listed", "root", store.Root(), "count", len(models))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			for _, model := range models {
				if _, err := fmt.Fprintf(w, "%s\t%s\n", model.Path, model.LastModified); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.cellpad/config.yaml)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to list (default: notebook_dir from config)")
	return cmd
}
