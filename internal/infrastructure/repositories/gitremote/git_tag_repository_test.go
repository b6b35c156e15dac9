//go:build unit

package gitremote_test

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	"github.com/rios0rios0/pinbump/internal/infrastructure/repositories/gitremote"
)

const (
	tagObject = "1111111111111111111111111111111111111111"
	commit    = "0400d5f644dc74513175e3cd8d07132dd4860809"
	lightTag  = "2222222222222222222222222222222222222222"
	mainHead  = "3333333333333333333333333333333333333333"
)

func advertisedRefs() []*plumbing.Reference {
	return []*plumbing.Reference{
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main")),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), plumbing.NewHash(mainHead)),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v4.2.4"), plumbing.NewHash(tagObject)),
		plumbing.NewHashReference(plumbing.ReferenceName("refs/tags/v4.2.4^{}"), plumbing.NewHash(commit)),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v4.2.3"), plumbing.NewHash(lightTag)),
		plumbing.NewHashReference(plumbing.ReferenceName("refs/pull/1/head"), plumbing.NewHash(mainHead)),
	}
}

type listerSpy struct {
	urls  []string
	auths []transport.AuthMethod
	refs  []*plumbing.Reference
	err   error
}

func (s *listerSpy) list(_ context.Context, remoteURL string, auth transport.AuthMethod) ([]*plumbing.Reference, error) {
	s.urls = append(s.urls, remoteURL)
	s.auths = append(s.auths, auth)
	return s.refs, s.err
}

func TestListingFromRefs(t *testing.T) {
	t.Parallel()

	t.Run("should use the peeled commit of annotated tags and collect branches", func(t *testing.T) {
		t.Parallel()

		// when
		listing := gitremote.ListingFromRefs(advertisedRefs())

		// then
		assert.Equal(t, []entities.TagMetadata{
			{Name: "v4.2.4", Hash: commit},
			{Name: "v4.2.3", Hash: lightTag},
		}, listing.Tags)
		assert.Equal(t, []string{"main"}, listing.Branches)
	})
}

func TestWebHost(t *testing.T) {
	t.Parallel()

	t.Run("should derive the git host from the API root", func(t *testing.T) {
		t.Parallel()

		// given
		cases := map[string]string{
			"https://api.github.com/":         "https://github.com",
			"https://ghe.example.com/api/v3/": "https://ghe.example.com",
			"https://ghe.example.com/api/v3":  "https://ghe.example.com",
			"":                                "https://github.com",
		}

		for baseURL, expected := range cases {
			// when
			host, err := gitremote.WebHost(baseURL)

			// then
			require.NoError(t, err, baseURL)
			assert.Equal(t, expected, host, baseURL)
		}
	})

	t.Run("should reject a relative base URL", func(t *testing.T) {
		t.Parallel()

		// when
		_, err := gitremote.WebHost("github.com")

		// then
		require.Error(t, err)
	})
}

func TestTagRepository(t *testing.T) {
	t.Parallel()

	t.Run("should list the clone URL with token authentication", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &listerSpy{refs: advertisedRefs()}
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "secret")
		repository, err := gitremote.NewTagRepositoryWithLister(clientCtx, spy.list)
		require.NoError(t, err)

		// when
		listing, resp, err := repository.ListTags(context.Background(), "actions", "checkout")

		// then
		require.NoError(t, err)
		assert.Len(t, listing.Tags, 2)
		assert.Empty(t, resp.Headers)
		assert.Equal(t, []string{"https://github.com/actions/checkout.git"}, spy.urls)
		assert.Equal(t, &githttp.BasicAuth{Username: "x-access-token", Password: "secret"}, spy.auths[0])
		assert.Equal(t, entities.SourceGit, repository.Name())
	})

	t.Run("should resolve tags and branches to commits", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &listerSpy{refs: advertisedRefs()}
		repository, err := gitremote.NewTagRepositoryWithLister(
			entities.NewClientContext(entities.DefaultBaseURL, ""), spy.list)
		require.NoError(t, err)

		// when
		tagHash, _, tagErr := repository.ResolveCommit(context.Background(), "actions", "checkout", "v4.2.4")
		branchHash, _, branchErr := repository.ResolveCommit(context.Background(), "actions", "checkout", "main")
		_, _, missingErr := repository.ResolveCommit(context.Background(), "actions", "checkout", "v9")

		// then
		require.NoError(t, tagErr)
		require.NoError(t, branchErr)
		assert.Equal(t, commit, tagHash)
		assert.Equal(t, mainHead, branchHash)
		require.ErrorIs(t, missingErr, entities.ErrRefNotFound)
		assert.Nil(t, spy.auths[0])
	})

	t.Run("should check qualified refs", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &listerSpy{refs: advertisedRefs()}
		repository, err := gitremote.NewTagRepositoryWithLister(
			entities.NewClientContext(entities.DefaultBaseURL, ""), spy.list)
		require.NoError(t, err)

		// when
		branch, _, _ := repository.RefExists(context.Background(), "actions", "checkout", "heads/main")
		notBranch, _, _ := repository.RefExists(context.Background(), "actions", "checkout", "heads/v4.2.4")
		tag, _, _ := repository.RefExists(context.Background(), "actions", "checkout", "tags/v4.2.3")

		// then
		assert.True(t, branch)
		assert.False(t, notBranch)
		assert.True(t, tag)
	})

	t.Run("should wrap transport errors", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &listerSpy{err: transport.ErrRepositoryNotFound}
		repository, err := gitremote.NewTagRepositoryWithLister(
			entities.NewClientContext(entities.DefaultBaseURL, ""), spy.list)
		require.NoError(t, err)

		// when
		_, _, listErr := repository.ListTags(context.Background(), "actions", "missing")

		// then
		require.ErrorIs(t, listErr, transport.ErrRepositoryNotFound)
	})
}
