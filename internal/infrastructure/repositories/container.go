package repositories

import (
	"go.uber.org/dig"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	gitRepo "github.com/rios0rios0/pinbump/internal/infrastructure/repositories/gitremote"
	ghRepo "github.com/rios0rios0/pinbump/internal/infrastructure/repositories/github"
)

// RegisterProviders registers all repository providers with the DIG container.
func RegisterProviders(container *dig.Container) error {
	return container.Provide(func() *TagRepositoryRegistry {
		reg := NewTagRepositoryRegistry()
		reg.Register(entities.SourceTags, ghRepo.NewTagsRepository)
		reg.Register(entities.SourceReleases, ghRepo.NewReleasesRepository)
		reg.Register(entities.SourceGit, gitRepo.NewTagRepository)
		return reg
	})
}
