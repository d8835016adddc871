package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gbp-politico/backend/internal/template"
)

var templateOutput string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the eleitor import workbook template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if templateOutput == "-" {
			return template.Write(cmd.OutOrStdout())
		}
		f, err := os.Create(templateOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", templateOutput, err)
		}
		if err := template.Write(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "template written to %s\n", templateOutput)
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVarP(&templateOutput, "output", "o", template.FileName, `Output path, or "-" for stdout`)
	rootCmd.AddCommand(templateCmd)
}
