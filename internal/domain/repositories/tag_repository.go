package repositories

import (
	"context"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

// Response carries the transport metadata of one remote call. Headers is empty
// when the transport has none (e.g. plain git).
type Response struct {
	Headers map[string]any
}

// TagListing is the single response of a tag or release listing.
type TagListing struct {
	Tags     []entities.TagMetadata
	Branches []string // branch names, when the source lists them in the same call
}

// TagRepository abstracts the remote dependency host (GitHub REST, plain git, etc.).
// Implementations must return the response metadata even when the call fails,
// so the rate-limit budget can be tracked from failed calls too.
type TagRepository interface {
	// Name returns the source identifier (e.g. "tags", "releases", "git").
	Name() string

	// ListTags returns the repository's published tags in one call.
	ListTags(ctx context.Context, owner, repo string) (TagListing, Response, error)

	// ResolveCommit returns the commit hash a tag or branch points to.
	ResolveCommit(ctx context.Context, owner, repo, ref string) (string, Response, error)

	// RefExists reports whether a fully qualified ref (e.g. "heads/main") exists.
	RefExists(ctx context.Context, owner, repo, ref string) (bool, Response, error)
}

// TagRepositoryFactory builds a TagRepository bound to the endpoint and token of a run.
type TagRepositoryFactory func(clientCtx *entities.ClientContext) (TagRepository, error)
