package entities

import (
	"go.uber.org/dig"
)

// RegisterProviders registers all entity providers with the DIG container.
// Settings and the ClientContext are built per run by the controllers layer.
func RegisterProviders(container *dig.Container) error {
	return container.Provide(SystemClock)
}
