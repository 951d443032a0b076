package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/sheet"
	"github.com/JonMunkholm/CrewImport/internal/store"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "template <crew|certificate>",
		Short:     "Write the example workbook for an entity type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(schema.Crew), string(schema.Certificate)},
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := schema.Parse(args[0])
			if err != nil {
				return err
			}
			data, err := sheet.Template(entity)
			if err != nil {
				return err
			}
			if output == "" {
				output = sheet.TemplateFilename(entity)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: localized template name)")
	return cmd
}

type validateOutput struct {
	Entity     schema.EntityType      `json:"type"`
	Format     string                 `json:"format"`
	Validation *core.ValidationResult `json:"validation"`
	Preview    []core.PreviewRow      `json:"previewData"`
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <crew|certificate> <file>",
		Short: "Dry-run a spreadsheet against the database without writing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := schema.Parse(args[0])
			if err != nil {
				return err
			}

			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			data, err := readInput(args[1], cfg.Upload.MaxFileSize)
			if err != nil {
				return err
			}

			v, err := newService(cfg, pool).Validate(cmd.Context(), entity, data)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), validateOutput{
				Entity:     v.Entity,
				Format:     v.Format,
				Validation: v.Result,
				Preview:    v.Preview,
			}); err != nil {
				return err
			}
			if !v.Result.IsValid {
				return fmt.Errorf("%d errors in %d rows", len(v.Result.Errors), v.Result.TotalRows)
			}
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <crew|certificate> <file>",
		Short: "Validate a spreadsheet and commit it when it has no errors",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := schema.Parse(args[0])
			if err != nil {
				return err
			}

			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			data, err := readInput(args[1], cfg.Upload.MaxFileSize)
			if err != nil {
				return err
			}

			result, err := newService(cfg, pool).Import(cmd.Context(), entity, data)
			var rejected *core.ValidationFailedError
			if errors.As(err, &rejected) {
				if werr := writeJSON(cmd.OutOrStdout(), rejected.Result); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := store.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
