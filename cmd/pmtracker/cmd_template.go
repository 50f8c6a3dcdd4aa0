package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/service"
)

func newTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage PM task templates",
	}
	cmd.AddCommand(newTemplateImportCommand())
	return cmd
}

func newTemplateImportCommand() *cobra.Command {
	var pmID string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a task list from a YAML or JSON file",
		Long: `Import a task list from a YAML or JSON file.

With --pm the template is attached to an uploaded PM document; importing again
for the same PM keeps the existing template. Without --pm a standalone
template is created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := loadDraft(args[0])
			if err != nil {
				return err
			}

			cfg, log, err := loadApp(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				tpl     *domain.Template
				created = true
			)
			if pmID != "" {
				admin := service.NewAdminService(a.pms, a.templates, a.store, cfg.GetUploadTimeout(), log)
				tpl, created, err = admin.ImportTemplate(cmd.Context(), pmID, *draft)
			} else {
				tpl, err = service.NewCatalogService(a.pms, a.templates).ImportStandalone(cmd.Context(), *draft)
			}
			if err != nil {
				return err
			}

			verb := "imported"
			if !created {
				verb = "already present"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template %s %s (%d tasks)\n", tpl.ID, verb, len(tpl.Tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&pmID, "pm", "", "Attach the template to this PM ID")
	return cmd
}

// loadDraft reads a template draft; .json files are JSON, anything else YAML.
func loadDraft(path string) (*domain.TemplateDraft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var draft domain.TemplateDraft
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &draft)
	default:
		err = yaml.Unmarshal(raw, &draft)
	}
	if err != nil {
		return nil, domain.NewValidationError("parse %s: %v", path, err)
	}
	return &draft, nil
}
