package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/cellpad/core"
	"pkt.systems/cellpad/internal/appconfig"
	"pkt.systems/cellpad/schema"
)

func newNewCmd() *cobra.Command {
	var cfgPath string
	var kernelName string
	var title string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "new <notebook.ipynb>",
		Short: "Create an empty notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			file, err := openNotebookFile(ctx, args[0])
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := file.store.Get(ctx, file.name); err == nil {
					return fmt.Errorf("notebook already exists at %s", file.path)
				} else if !errors.Is(err, schema.ErrNotFound) {
					return err
				}
			}
			nb, err := core.NewNotebook(cfg.NotebookSettings(), core.NotebookDeps{
				Contents: file.store,
				Logger:   file.logger(ctx),
			})
			if err != nil {
				return err
			}
			defer nb.Dispose()
			nb.SetPath(file.name)
			name := kernelNameFor(kernelName, schema.NotebookMetadata{}, cfg)
			nb.SetMetadata(schema.NotebookMetadata{
				KernelSpec: &schema.KernelSpecInfo{Name: name, DisplayName: name},
			})
			if t := strings.TrimSpace(title); t != "" {
				if _, err := nb.AppendCell(schema.CellTypeMarkdown, "# "+t); err != nil {
					return err
				}
			}
			if _, err := nb.AppendCell(schema.CellTypeCode, ""); err != nil {
				return err
			}
			return nb.Save(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.cellpad/config.yaml)")
	cmd.Flags().StringVarP(&kernelName, "kernel", "k", "", "kernelspec recorded in the notebook metadata")
	cmd.Flags().StringVar(&title, "title", "", "add a markdown heading cell")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing notebook")
	return cmd
}
