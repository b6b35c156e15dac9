package controllers

import (
	"go.uber.org/dig"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

// RegisterProviders registers all controller providers with the DIG container.
func RegisterProviders(container *dig.Container) error {
	// Register controller constructors
	if err := container.Provide(NewResolveController); err != nil {
		return err
	}
	if err := container.Provide(NewVersionController); err != nil {
		return err
	}
	return container.Provide(NewControllers)
}

// NewControllers aggregates all controllers into a slice for the AppInternal.
func NewControllers(
	resolveController *ResolveController,
	versionController *VersionController,
) *[]entities.Controller {
	return &[]entities.Controller{
		resolveController,
		versionController,
	}
}
