package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/pinbump/internal/domain/commands"
	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

const (
	outputText = "text"
	outputYAML = "yaml"
	argsScan   = "arguments"
)

// ResolveController handles the "resolve" subcommand.
type ResolveController struct {
	command commands.Run
}

// NewResolveController creates a new ResolveController.
func NewResolveController(command commands.Run) *ResolveController {
	return &ResolveController{command: command}
}

// GetBind returns the Cobra command metadata for the resolve controller.
func (it *ResolveController) GetBind() entities.ControllerBind {
	return entities.ControllerBind{
		Use:   "resolve [owner/repo[/path]@ref[#annotation]...]",
		Short: "Resolve the latest version and commit of pinned actions",
		Long: `Resolve the latest released version of every referenced action,
the commit it points to, and how far the current pin is behind.

References come from the arguments and from YAML references files
(--file, repeatable). Every file is one scan pass; the passes share
one cache and one rate-limit budget and are merged into one report.

A hash pin can carry its version as an annotation, the way a
"# v4.2.4" comment follows the pin in a workflow:

  pinbump resolve actions/checkout@11bd71901bbe5b1630ceea73d27597364c9af683#v4.2.2`,
	}
}

// Execute resolves the references and prints the report.
func (it *ResolveController) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logger.DebugLevel)
	}

	output, _ := cmd.Flags().GetString("output")
	if output != outputText && output != outputYAML {
		err := fmt.Errorf("unsupported output %q, expected %q or %q", output, outputText, outputYAML)
		logger.Error(err)
		return err
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		logger.Errorf("failed to load config: %v", err)
		return err
	}

	scans, err := collectScans(cmd, args)
	if err != nil {
		logger.Errorf("failed to read references: %v", err)
		return err
	}

	result, runErr := it.command.Execute(ctx, settings, scans)
	if runErr != nil && !errors.Is(runErr, commands.ErrAllResolutionsFailed) {
		logger.Errorf("Resolve failed: %v", runErr)
		return runErr
	}

	if renderErr := render(cmd.OutOrStdout(), output, result); renderErr != nil {
		logger.Errorf("failed to write report: %v", renderErr)
		return renderErr
	}
	if runErr != nil {
		logger.Errorf("Resolve failed: %v", runErr)
	}
	return runErr
}

// AddFlags adds the resolve-specific flags to the given Cobra command.
func (it *ResolveController) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("file", "f", nil, "YAML references file (repeatable, one scan pass per file)")
	cmd.Flags().StringP("output", "o", outputText, "Report format (text, yaml)")
	cmd.Flags().String("token", "", "GitHub token (overrides config and GITHUB_TOKEN)")
	cmd.Flags().String("source", "",
		fmt.Sprintf("Tag source (%s, %s, %s)", entities.SourceTags, entities.SourceReleases, entities.SourceGit),
	)
	cmd.Flags().Int("workers", 0, "Number of concurrent resolutions")
	cmd.Flags().String("base-url", "", "GitHub API root (GitHub Enterprise)")
}

// loadSettings reads the config file, if any, and applies the flag overrides.
func loadSettings(cmd *cobra.Command) (*entities.Settings, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var settings *entities.Settings
	if configPath == "" {
		if found, findErr := entities.FindConfigFile(); findErr == nil {
			configPath = found
		}
	}

	if configPath == "" {
		logger.Debug("No config file found, using defaults")
		settings = entities.NewDefaultSettings()
	} else {
		logger.Infof("Using config file: %s", configPath)
		var err error
		if settings, err = entities.NewSettings(configPath); err != nil {
			return nil, err
		}
	}

	if token, _ := cmd.Flags().GetString("token"); token != "" {
		settings.Token = entities.ResolveToken(token)
	}
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		settings.Source = source
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers != 0 {
		settings.Run.Workers = workers
	}
	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		settings.BaseURL = baseURL
	}

	return settings, settings.Validate()
}

// collectScans builds one scan pass per references file plus one for the arguments.
func collectScans(cmd *cobra.Command, args []string) ([]commands.ScanInput, error) {
	files, _ := cmd.Flags().GetStringArray("file")

	scans := make([]commands.ScanInput, 0, len(files)+1)
	for _, path := range files {
		refs, err := entities.NewReferencesFromFile(path)
		if err != nil {
			return nil, err
		}
		scans = append(scans, commands.ScanInput{Name: path, References: refs})
	}

	if len(args) > 0 {
		refs := make([]entities.Reference, 0, len(args))
		for _, arg := range args {
			ref, err := entities.ParseReferenceWithAnnotation(arg)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		scans = append(scans, commands.ScanInput{Name: argsScan, References: refs})
	}

	if len(scans) == 0 {
		return nil, errors.New("no references given, pass them as arguments or with --file")
	}
	return scans, nil
}

func render(out io.Writer, output string, result entities.ScanResult) error {
	if output == outputYAML {
		return writeYAML(out, result)
	}
	return writeText(out, result)
}
