package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/forgeloop/forgeloop/internal/app"
	"github.com/forgeloop/forgeloop/internal/domain/model/feature"
	"github.com/forgeloop/forgeloop/internal/domain/model/gate"
	"github.com/forgeloop/forgeloop/internal/infra/repository"
)

// featureDoc is one feature in a registration YAML document
type featureDoc struct {
	ID                 string             `yaml:"id"`
	Title              string             `yaml:"title"`
	Description        string             `yaml:"description"`
	Priority           int                `yaml:"priority"`
	DependsOn          []string           `yaml:"depends_on"`
	AcceptanceCriteria []string           `yaml:"acceptance_criteria"`
	ModelOverride      string             `yaml:"model_override"`
	QualityGates       *gate.QualityGates `yaml:"quality_gates"`
}

// registerDoc is the top-level registration YAML document
type registerDoc struct {
	Features []featureDoc `yaml:"features"`
}

func newBacklogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "Manage the feature backlog",
		RunE:  func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(newBacklogRegisterCmd())
	return cmd
}

func newBacklogRegisterCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register features from a YAML document",
		RunE: func(c *cobra.Command, _ []string) error {
			if filePath == "" {
				return fmt.Errorf("--file is required")
			}

			data, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read %s: %w", filePath, err)
			}
			var doc registerDoc
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", filePath, err)
			}
			if len(doc.Features) == 0 {
				return fmt.Errorf("%s contains no features", filePath)
			}

			paths := app.ResolvePathsIn(globalConfig.Home())
			backlogs := repository.NewBacklogRepository(afero.NewOsFs(), paths.Backlog)

			backlog, err := loadOrCreateBacklog(backlogs)
			if err != nil {
				return err
			}

			registered := 0
			for i, fd := range doc.Features {
				f, err := buildFeature(fd)
				if err != nil {
					return fmt.Errorf("feature %d: %w", i+1, err)
				}
				if err := backlog.AddFeature(f); err != nil {
					return err
				}
				registered++
			}

			if err := backlog.Validate(); err != nil {
				return fmt.Errorf("backlog validation: %w", err)
			}
			if err := backlogs.Save(backlog); err != nil {
				return err
			}

			fmt.Printf("Registered %d feature(s), backlog now has %d\n", registered, len(backlog.Features))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "YAML document with features to register")
	return cmd
}

func loadOrCreateBacklog(backlogs *repository.BacklogRepository) (*feature.Backlog, error) {
	if !backlogs.Exists() {
		return feature.NewBacklog(globalConfig.ProjectName(), globalConfig.ProjectPath()), nil
	}
	return backlogs.Load()
}

// buildFeature validates one document entry and normalizes its text to NFC
// so mixed-input titles compare and dedupe consistently
func buildFeature(fd featureDoc) (*feature.Feature, error) {
	if fd.Priority < 0 {
		return nil, fmt.Errorf("priority must not be negative")
	}

	f, err := feature.NewFeature(norm.NFC.String(fd.ID), norm.NFC.String(fd.Title), fd.Priority)
	if err != nil {
		return nil, err
	}
	f.Description = norm.NFC.String(fd.Description)
	f.DependsOn = fd.DependsOn
	f.ModelOverride = fd.ModelOverride
	f.QualityGates = fd.QualityGates
	for _, c := range fd.AcceptanceCriteria {
		f.AcceptanceCriteria = append(f.AcceptanceCriteria, norm.NFC.String(c))
	}
	return f, nil
}
