package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	"github.com/rios0rios0/pinbump/internal/domain/repositories"
)

const (
	perPage             = 100
	retryMax            = 3
	statusUnprocessable = http.StatusUnprocessableEntity // GitHub answers 422 for an unknown commit-ish
)

// TagRepository implements repositories.TagRepository over the GitHub REST API.
// With releases set, the latest version comes from published releases instead
// of raw tags.
type TagRepository struct {
	client   *gh.Client
	releases bool
}

// NewTagsRepository is the factory for the "tags" source.
func NewTagsRepository(clientCtx *entities.ClientContext) (repositories.TagRepository, error) {
	return newTagRepository(clientCtx, false)
}

// NewReleasesRepository is the factory for the "releases" source.
func NewReleasesRepository(clientCtx *entities.ClientContext) (repositories.TagRepository, error) {
	return newTagRepository(clientCtx, true)
}

func newTagRepository(clientCtx *entities.ClientContext, releases bool) (*TagRepository, error) {
	client, err := NewClient(clientCtx.BaseURL, clientCtx.Token)
	if err != nil {
		return nil, err
	}
	return &TagRepository{client: client, releases: releases}, nil
}

// NewClient builds a go-github client with transient-failure retries, bearer
// authentication when token is set, and an optional API root override.
func NewClient(baseURL, token string) (*gh.Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient := retryClient.StandardClient()

	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := gh.NewClient(httpClient)
	if baseURL == "" || baseURL == entities.DefaultBaseURL {
		return client, nil
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	endpoint, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	client.BaseURL = endpoint
	return client, nil
}

func (it *TagRepository) Name() string {
	if it.releases {
		return entities.SourceReleases
	}
	return entities.SourceTags
}

// ListTags fetches one page of tags (or releases). Tags carry their commit hash;
// releases carry their publication time instead.
func (it *TagRepository) ListTags(
	ctx context.Context,
	owner, repo string,
) (repositories.TagListing, repositories.Response, error) {
	opts := &gh.ListOptions{PerPage: perPage}
	if it.releases {
		return it.listReleases(ctx, owner, repo, opts)
	}

	tags, resp, err := it.client.Repositories.ListTags(ctx, owner, repo, opts)
	if err != nil {
		return repositories.TagListing{}, toResponse(resp), fmt.Errorf("failed to list tags: %w", err)
	}

	listing := repositories.TagListing{Tags: make([]entities.TagMetadata, 0, len(tags))}
	for _, tag := range tags {
		listing.Tags = append(listing.Tags, entities.TagMetadata{
			Name: tag.GetName(),
			Hash: tag.GetCommit().GetSHA(),
		})
	}
	return listing, toResponse(resp), nil
}

func (it *TagRepository) listReleases(
	ctx context.Context,
	owner, repo string,
	opts *gh.ListOptions,
) (repositories.TagListing, repositories.Response, error) {
	releases, resp, err := it.client.Repositories.ListReleases(ctx, owner, repo, opts)
	if err != nil {
		return repositories.TagListing{}, toResponse(resp), fmt.Errorf("failed to list releases: %w", err)
	}

	listing := repositories.TagListing{Tags: make([]entities.TagMetadata, 0, len(releases))}
	for _, release := range releases {
		if release.GetDraft() || release.GetPrerelease() || release.GetTagName() == "" {
			continue
		}
		tag := entities.TagMetadata{Name: release.GetTagName()}
		if release.PublishedAt != nil {
			published := release.PublishedAt.Time
			tag.PublishedAt = &published
		}
		listing.Tags = append(listing.Tags, tag)
	}
	return listing, toResponse(resp), nil
}

// ResolveCommit returns the commit SHA that ref points to.
func (it *TagRepository) ResolveCommit(
	ctx context.Context,
	owner, repo, ref string,
) (string, repositories.Response, error) {
	sha, resp, err := it.client.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
	if err != nil {
		if isNotFound(err) {
			return "", toResponse(resp), fmt.Errorf("%w: %s/%s@%s", entities.ErrRefNotFound, owner, repo, ref)
		}
		return "", toResponse(resp), fmt.Errorf("failed to resolve %s/%s@%s: %w", owner, repo, ref, err)
	}
	return sha, toResponse(resp), nil
}

// RefExists looks up a qualified ref such as "heads/main" or "tags/v1".
func (it *TagRepository) RefExists(
	ctx context.Context,
	owner, repo, ref string,
) (bool, repositories.Response, error) {
	_, resp, err := it.client.Git.GetRef(ctx, owner, repo, ref)
	if err != nil {
		if isNotFound(err) {
			return false, toResponse(resp), nil
		}
		return false, toResponse(resp), fmt.Errorf("failed to look up %s in %s/%s: %w", ref, owner, repo, err)
	}
	return true, toResponse(resp), nil
}

func isNotFound(err error) bool {
	var errResp *gh.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return false
	}
	return errResp.Response.StatusCode == http.StatusNotFound || errResp.Response.StatusCode == statusUnprocessable
}

// toResponse keeps the headers of every response, failed ones included.
func toResponse(resp *gh.Response) repositories.Response {
	if resp == nil || resp.Response == nil {
		return repositories.Response{}
	}
	return repositories.Response{Headers: entities.HeadersFromHTTP(resp.Header)}
}
