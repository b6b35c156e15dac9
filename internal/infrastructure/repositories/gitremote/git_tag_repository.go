package gitremote

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	"github.com/rios0rios0/pinbump/internal/domain/repositories"
)

const (
	peeledSuffix = "^{}"
	tokenUser    = "x-access-token"
	tagsPrefix   = "refs/tags/"
	headsPrefix  = "refs/heads/"
)

// RefLister lists the advertised refs of a remote repository.
type RefLister func(ctx context.Context, remoteURL string, auth transport.AuthMethod) ([]*plumbing.Reference, error)

// TagRepository implements repositories.TagRepository with the git smart
// protocol. It does not consume the REST API budget, so responses carry no headers.
type TagRepository struct {
	host   string
	auth   transport.AuthMethod
	lister RefLister
}

// NewTagRepository is the factory for the "git" source.
func NewTagRepository(clientCtx *entities.ClientContext) (repositories.TagRepository, error) {
	return NewTagRepositoryWithLister(clientCtx, ListRemote)
}

// NewTagRepositoryWithLister builds the source on top of a custom ref lister.
func NewTagRepositoryWithLister(
	clientCtx *entities.ClientContext,
	lister RefLister,
) (repositories.TagRepository, error) {
	host, err := WebHost(clientCtx.BaseURL)
	if err != nil {
		return nil, err
	}

	var auth transport.AuthMethod
	if clientCtx.HasToken() {
		auth = &githttp.BasicAuth{Username: tokenUser, Password: clientCtx.Token}
	}
	return &TagRepository{host: host, auth: auth, lister: lister}, nil
}

// ListRemote runs the equivalent of "git ls-remote" against remoteURL.
func ListRemote(ctx context.Context, remoteURL string, auth transport.AuthMethod) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{remoteURL},
	})
	return remote.ListContext(ctx, &git.ListOptions{
		Auth:          auth,
		PeelingOption: git.AppendPeeled,
	})
}

// WebHost turns an API root into the host that serves git over HTTPS:
// "https://api.github.com/" becomes "https://github.com" and an Enterprise
// "https://ghe.example.com/api/v3/" becomes "https://ghe.example.com".
func WebHost(baseURL string) (string, error) {
	if baseURL == "" {
		baseURL = entities.DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", baseURL)
	}

	u.Host = strings.TrimPrefix(u.Host, "api.")
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api/v3")
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (it *TagRepository) Name() string { return entities.SourceGit }

func (it *TagRepository) cloneURL(owner, repo string) string {
	return fmt.Sprintf("%s/%s/%s.git", it.host, owner, repo)
}

func (it *TagRepository) listRefs(ctx context.Context, owner, repo string) (repositories.TagListing, error) {
	remoteURL := it.cloneURL(owner, repo)
	logger.Debugf("Listing refs of %s", remoteURL)

	refs, err := it.lister(ctx, remoteURL, it.auth)
	if err != nil {
		return repositories.TagListing{}, fmt.Errorf("failed to list refs of %s/%s: %w", owner, repo, err)
	}
	return ListingFromRefs(refs), nil
}

// ListTags returns every tag with its commit hash along with every branch name.
func (it *TagRepository) ListTags(
	ctx context.Context,
	owner, repo string,
) (repositories.TagListing, repositories.Response, error) {
	listing, err := it.listRefs(ctx, owner, repo)
	return listing, repositories.Response{}, err
}

// ResolveCommit looks ref up among the tags first, then the branches.
func (it *TagRepository) ResolveCommit(
	ctx context.Context,
	owner, repo, ref string,
) (string, repositories.Response, error) {
	refs, err := it.lister(ctx, it.cloneURL(owner, repo), it.auth)
	if err != nil {
		return "", repositories.Response{}, fmt.Errorf("failed to list refs of %s/%s: %w", owner, repo, err)
	}

	name := strings.TrimPrefix(ref, "refs/")
	name = strings.TrimPrefix(strings.TrimPrefix(name, "tags/"), "heads/")
	listing := ListingFromRefs(refs)
	for _, tag := range listing.Tags {
		if tag.Name == name {
			return tag.Hash, repositories.Response{}, nil
		}
	}
	for _, r := range refs {
		if r.Name() == plumbing.NewBranchReferenceName(name) {
			return r.Hash().String(), repositories.Response{}, nil
		}
	}
	return "", repositories.Response{}, fmt.Errorf("%w: %s/%s@%s", entities.ErrRefNotFound, owner, repo, ref)
}

// RefExists reports whether a qualified ref such as "heads/main" is advertised.
func (it *TagRepository) RefExists(
	ctx context.Context,
	owner, repo, ref string,
) (bool, repositories.Response, error) {
	refs, err := it.lister(ctx, it.cloneURL(owner, repo), it.auth)
	if err != nil {
		return false, repositories.Response{}, fmt.Errorf("failed to list refs of %s/%s: %w", owner, repo, err)
	}

	want := plumbing.ReferenceName("refs/" + strings.TrimPrefix(ref, "refs/"))
	for _, r := range refs {
		if r.Name() == want {
			return true, repositories.Response{}, nil
		}
	}
	return false, repositories.Response{}, nil
}

// ListingFromRefs converts advertised refs into a listing. For annotated tags
// the peeled "^{}" entry carries the commit, which replaces the tag object hash.
func ListingFromRefs(refs []*plumbing.Reference) repositories.TagListing {
	var listing repositories.TagListing
	index := make(map[string]int)
	peeled := make(map[string]string)

	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		full := ref.Name().String()
		switch {
		case strings.HasPrefix(full, tagsPrefix):
			name := strings.TrimPrefix(full, tagsPrefix)
			if base, ok := strings.CutSuffix(name, peeledSuffix); ok {
				peeled[base] = ref.Hash().String()
				continue
			}
			index[name] = len(listing.Tags)
			listing.Tags = append(listing.Tags, entities.TagMetadata{Name: name, Hash: ref.Hash().String()})
		case strings.HasPrefix(full, headsPrefix):
			listing.Branches = append(listing.Branches, strings.TrimPrefix(full, headsPrefix))
		}
	}

	for name, hash := range peeled {
		if i, ok := index[name]; ok {
			listing.Tags[i].Hash = hash
		}
	}
	return listing
}
