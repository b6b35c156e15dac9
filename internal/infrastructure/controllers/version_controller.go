package controllers

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

// VersionController handles the "version" subcommand.
type VersionController struct{}

// NewVersionController creates a new VersionController.
func NewVersionController() *VersionController {
	return &VersionController{}
}

func (it *VersionController) GetBind() entities.ControllerBind {
	return entities.ControllerBind{
		Use:   "version",
		Short: "Print the version",
	}
}

func (it *VersionController) Execute(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "pinbump %s\n", entities.BuildVersion)
	return err
}

func (it *VersionController) AddFlags(_ *cobra.Command) {}
