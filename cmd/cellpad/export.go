package main

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/cellpad/internal/export"
)

func newExportCmd() *cobra.Command {
	var to string
	var output string
	cmd := &cobra.Command{
		Use:   "export <notebook.ipynb>",
		Short: "Convert a notebook to json, yaml or markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exporter, err := export.Lookup(to)
			if err != nil {
				return err
			}
			file, err := openNotebookFile(ctx, args[0])
			if err != nil {
				return err
			}
			doc, err := file.document(ctx)
			if err != nil {
				return err
			}
			if output == "" {
				return exporter.Export(cmd.OutOrStdout(), doc)
			}
			var buf bytes.Buffer
			if err := exporter.Export(&buf, doc); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return err
			}
			file.logger(ctx).Info("notebook exported", "format", exporter.Name(), "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "markdown", "output format (json, yaml, markdown)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
