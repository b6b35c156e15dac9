package entities

import "github.com/spf13/cobra"

// ControllerBind carries the Cobra metadata of a controller.
type ControllerBind struct {
	Use   string
	Short string
	Long  string
}

// Controller is a CLI entry point bound to one subcommand. Execute logs its own
// failures; a returned error only sets the exit status.
type Controller interface {
	GetBind() ControllerBind
	Execute(cmd *cobra.Command, arguments []string) error
	AddFlags(cmd *cobra.Command)
}

// BuildVersion is the version stamped into the binary.
var BuildVersion = "dev" //nolint:gochecknoglobals // set via -ldflags
