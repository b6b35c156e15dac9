package repositories

import (
	"fmt"
	"sort"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	domainRepos "github.com/rios0rios0/pinbump/internal/domain/repositories"
)

// TagRepositoryRegistry manages every registered tag source (e.g. "tags", "git").
type TagRepositoryRegistry struct {
	factories map[string]domainRepos.TagRepositoryFactory
}

// NewTagRepositoryRegistry creates an empty registry.
func NewTagRepositoryRegistry() *TagRepositoryRegistry {
	return &TagRepositoryRegistry{
		factories: make(map[string]domainRepos.TagRepositoryFactory),
	}
}

// Register adds a factory under the given source name.
func (r *TagRepositoryRegistry) Register(name string, factory domainRepos.TagRepositoryFactory) {
	r.factories[name] = factory
}

// Get builds the tag source registered under name for the given client context.
func (r *TagRepositoryRegistry) Get(
	name string,
	clientCtx *entities.ClientContext,
) (domainRepos.TagRepository, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown tag source: %q (registered: %v)", name, r.Names())
	}
	repository, err := factory(clientCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tag source %q: %w", name, err)
	}
	return repository, nil
}

// Names returns the sorted list of registered source names.
func (r *TagRepositoryRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
