//go:build unit

package commands_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/pinbump/internal/domain/commands"
	"github.com/rios0rios0/pinbump/internal/domain/entities"
	"github.com/rios0rios0/pinbump/internal/domain/repositories"
	"github.com/rios0rios0/pinbump/test/domain/entitybuilders"
	"github.com/rios0rios0/pinbump/test/domain/entitydoubles"
	doubles "github.com/rios0rios0/pinbump/test/infrastructure/repositorydoubles"
)

const (
	pinnedHash = "e2c02d0c8b12e4d0e8b8e0f0e0e0e0e0e0e0e0e"
	v424Hash   = "0400d5f644dc74513175e3cd8d07132dd4860809"
	v500Hash   = "11bd71901bbe5b1630ceea73d27597364c9af683"
)

func checkoutListing() repositories.TagListing {
	return repositories.TagListing{Tags: []entities.TagMetadata{
		{Name: "v4", Hash: v424Hash},
		{Name: "v4.2.4", Hash: v424Hash},
		{Name: "v4.2.3", Hash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{Name: "v4.10.0-rc.1", Hash: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
	}}
}

func newResolver(repository repositories.TagRepository) *commands.ResolveCommand {
	return commands.NewResolveCommand(repository, entities.RunOptions{
		CallTimeout:    time.Second,
		BreakingPolicy: entities.BreakingPolicyMajor,
	})
}

func TestResolveCommandResolve(t *testing.T) {
	t.Parallel()

	t.Run("should report no update for a hash pinned to the latest annotated version", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"actions/checkout": checkoutListing(),
		}}
		ref := entitybuilders.NewReferenceBuilder().
			WithCurrentRef(pinnedHash).
			WithAnnotation("v4.2.4").
			BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		require.NoError(t, record.Err)
		assert.False(t, record.HasUpdate)
		assert.False(t, record.IsBreaking)
		require.NotNil(t, record.LatestHash)
		assert.Equal(t, v424Hash, *record.LatestHash)
		assert.Equal(t, "v4.2.4", *record.LatestVersion)
		assert.Equal(t, entities.RefKindHash, record.Kind)
		assert.Equal(t, entities.StatusUpToDate, record.Status)
		assert.Equal(t, "v4.2.4", record.CurrentVersion)
		assert.Equal(t, "e2c02d0", record.DisplayVersion)
	})

	t.Run("should report a breaking major update from v4 to v5.0.0", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"actions/checkout": {Tags: []entities.TagMetadata{
				{Name: "v5.0.0", Hash: v500Hash},
				{Name: "v4", Hash: v424Hash},
			}},
		}}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("v4").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		require.NoError(t, record.Err)
		assert.Equal(t, entities.SeverityMajor, record.Severity)
		assert.True(t, record.IsBreaking)
		assert.True(t, record.HasUpdate)
		assert.Equal(t, entities.RefKindTag, record.Kind)
		assert.Equal(t, v500Hash, *record.LatestHash)
		assert.True(t, record.Selectable())
		assert.False(t, record.SelectedByDefault())
	})

	t.Run("should list a repository once when the same reference is resolved twice", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"actions/checkout": checkoutListing(),
		}}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("v4.2.3").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")
		resolver := newResolver(spy)

		// when
		first := resolver.Resolve(context.Background(), clientCtx, ref)
		second := resolver.Resolve(context.Background(), clientCtx, ref)

		// then
		assert.Equal(t, 1, spy.ListCalls("actions/checkout"))
		assert.Equal(t, first, second)
		assert.Equal(t, entities.SeverityPatch, first.Severity)
		assert.Positive(t, clientCtx.CacheStats().Hits)
	})

	t.Run("should skip pre-release tags unless the current version is one", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"actions/checkout": checkoutListing(),
		}}
		stable := entitybuilders.NewReferenceBuilder().WithCurrentRef("v4.2.3").BuildReference()
		pre := entitybuilders.NewReferenceBuilder().WithCurrentRef("v4.9.0-rc.2").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")
		resolver := newResolver(spy)

		// when
		stableRecord := resolver.Resolve(context.Background(), clientCtx, stable)
		preRecord := resolver.Resolve(context.Background(), clientCtx, pre)

		// then
		assert.Equal(t, "v4.2.4", *stableRecord.LatestVersion)
		assert.Equal(t, "v4.10.0-rc.1", *preRecord.LatestVersion)
		assert.Equal(t, 1, spy.ListCalls("actions/checkout"))
	})

	t.Run("should order tags numerically", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"actions/setup-node": {Tags: []entities.TagMetadata{
				{Name: "v9.0.0", Hash: v424Hash},
				{Name: "v10.0.0", Hash: v500Hash},
			}},
		}}
		ref := entitybuilders.NewReferenceBuilder().WithRepo("setup-node").WithCurrentRef("v9.0.0").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		assert.Equal(t, "v10.0.0", *record.LatestVersion)
	})

	t.Run("should follow the unprefixed style of the current version", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"owner/tool": {Tags: []entities.TagMetadata{
				{Name: "v2.0.0", Hash: v500Hash},
				{Name: "1.5.0", Hash: v424Hash},
			}},
		}}
		ref := entitybuilders.NewReferenceBuilder().WithOwner("owner").WithRepo("tool").WithCurrentRef("1.4.0").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		assert.Equal(t, "1.5.0", *record.LatestVersion)
		assert.Equal(t, entities.SeverityMinor, record.Severity)
	})

	t.Run("should resolve the hash with one targeted call when the listing has none", func(t *testing.T) {
		t.Parallel()

		// given
		published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		spy := &doubles.SpyTagRepository{
			Listings: map[string]repositories.TagListing{
				"actions/checkout": {Tags: []entities.TagMetadata{{Name: "v4.2.4", PublishedAt: &published}}},
			},
			Commits: map[string]string{"actions/checkout@v4.2.4": v424Hash},
		}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("v4.2.3").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")
		resolver := newResolver(spy)

		// when
		record := resolver.Resolve(context.Background(), clientCtx, ref)
		_ = resolver.Resolve(context.Background(), clientCtx, ref)

		// then
		assert.Equal(t, v424Hash, *record.LatestHash)
		assert.Equal(t, &published, record.PublishedAt)
		assert.Equal(t, []string{"actions/checkout@v4.2.4"}, spy.ResolveCalls())
	})

	t.Run("should keep the latest version visible but unselectable when the hash lookup fails", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{
			Listings: map[string]repositories.TagListing{
				"actions/checkout": {Tags: []entities.TagMetadata{{Name: "v4.2.4"}}},
			},
			CommitErr: errors.New("connection reset"),
		}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("v4.2.3").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		assert.Equal(t, entities.StatusUpdateAvailable, record.Status)
		assert.Equal(t, "v4.2.4", *record.LatestVersion)
		assert.Nil(t, record.LatestHash)
		assert.False(t, record.Selectable())
	})

	t.Run("should classify a branch with one lookup and cache it", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{
			Listings:     map[string]repositories.TagListing{"actions/checkout": checkoutListing()},
			ExistingRefs: map[string]bool{"actions/checkout@heads/main": true},
		}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("main").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")
		resolver := newResolver(spy)

		// when
		record := resolver.Resolve(context.Background(), clientCtx, ref)
		_ = resolver.Resolve(context.Background(), clientCtx, ref)

		// then
		assert.Equal(t, entities.RefKindBranch, record.Kind)
		assert.Equal(t, entities.SeverityUnknown, record.Severity)
		assert.True(t, record.HasUpdate)
		assert.False(t, record.IsBreaking)
		assert.Equal(t, []string{"actions/checkout@heads/main"}, spy.RefExistsCalls())
	})

	t.Run("should use branches from the listing without a lookup", func(t *testing.T) {
		t.Parallel()

		// given
		listing := checkoutListing()
		listing.Branches = []string{"main"}
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{"actions/checkout": listing}}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("main").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		assert.Equal(t, entities.RefKindBranch, record.Kind)
		assert.Empty(t, spy.RefExistsCalls())
	})

	t.Run("should detect an outdated hash without annotation by commit", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"actions/checkout": checkoutListing(),
		}}
		outdated := entitybuilders.NewReferenceBuilder().WithCurrentRef(pinnedHash).BuildReference()
		current := entitybuilders.NewReferenceBuilder().WithCurrentRef("0400d5f").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")
		resolver := newResolver(spy)

		// when
		outdatedRecord := resolver.Resolve(context.Background(), clientCtx, outdated)
		currentRecord := resolver.Resolve(context.Background(), clientCtx, current)

		// then
		assert.True(t, outdatedRecord.HasUpdate)
		assert.Equal(t, entities.SeverityUnknown, outdatedRecord.Severity)
		assert.Equal(t, "e2c02d0", outdatedRecord.DisplayVersion)
		assert.False(t, currentRecord.HasUpdate)
	})

	t.Run("should fail with no version tags when the repository has none", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{Listings: map[string]repositories.TagListing{
			"owner/untagged": {Tags: []entities.TagMetadata{{Name: "nightly", Hash: v424Hash}}},
		}}
		ref := entitybuilders.NewReferenceBuilder().WithOwner("owner").WithRepo("untagged").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")
		resolver := newResolver(spy)

		// when
		record := resolver.Resolve(context.Background(), clientCtx, ref)
		again := resolver.Resolve(context.Background(), clientCtx, ref)

		// then
		require.ErrorIs(t, record.Err, entities.ErrNoVersionTags)
		assert.Equal(t, entities.StatusFailed, record.Status)
		assert.Nil(t, record.LatestVersion)
		require.ErrorIs(t, again.Err, entities.ErrNoVersionTags)
		assert.Equal(t, 1, spy.ListCalls("owner/untagged"))
	})

	t.Run("should record a listing failure and track the rate limit of the failed call", func(t *testing.T) {
		t.Parallel()

		// given
		cause := errors.New("502 bad gateway")
		spy := &doubles.SpyTagRepository{
			ListErrs: map[string]error{"actions/checkout": cause},
			Headers: map[string]any{
				entities.HeaderRateLimitRemaining: "17",
				entities.HeaderRateLimitReset:     "1700000000",
			},
		}
		ref := entitybuilders.NewReferenceBuilder().BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		require.ErrorIs(t, record.Err, cause)
		assert.Equal(t, entities.StatusFailed, record.Status)
		assert.False(t, record.HasUpdate)
		assert.Nil(t, record.LatestHash)
		assert.Equal(t, 17, clientCtx.RateLimit().Remaining)
	})

	t.Run("should fail a bare hash pin when the commit of the latest version is unknown", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &doubles.SpyTagRepository{
			Listings: map[string]repositories.TagListing{
				"actions/checkout": {Tags: []entities.TagMetadata{{Name: "v5.0.0"}}},
			},
			CommitErr: errors.New("connection reset"),
		}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef(pinnedHash).BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		require.ErrorIs(t, record.Err, entities.ErrCommitUnresolved)
		assert.Equal(t, entities.StatusFailed, record.Status)
		assert.False(t, record.HasUpdate)
		assert.False(t, record.Selectable())
		assert.Equal(t, "e2c02d0", record.DisplayVersion)
	})

	t.Run("should wait for the reset before the follow-up calls of one resolution", func(t *testing.T) {
		t.Parallel()

		// given
		start := time.Unix(1_700_000_000, 0)
		reset := start.Add(time.Hour)
		clock := entitydoubles.NewFakeClock(start)
		var mu sync.Mutex
		var callTimes []time.Time
		spy := &doubles.SpyTagRepository{
			Listings: map[string]repositories.TagListing{
				"actions/checkout": {Tags: []entities.TagMetadata{{Name: "v5.0.0"}}},
			},
			Commits:      map[string]string{"actions/checkout@v5.0.0": v500Hash},
			ExistingRefs: map[string]bool{"actions/checkout@heads/main": true},
			Headers: map[string]any{
				entities.HeaderRateLimitRemaining: "0",
				entities.HeaderRateLimitReset:     strconv.FormatInt(reset.Unix(), 10),
			},
			OnCall: func(string) {
				mu.Lock()
				defer mu.Unlock()
				callTimes = append(callTimes, clock.Now())
			},
		}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("main").BuildReference()
		clientCtx := entities.NewClientContextWithClock(entities.DefaultBaseURL, "", clock)

		// when
		record := newResolver(spy).Resolve(context.Background(), clientCtx, ref)

		// then
		require.NoError(t, record.Err)
		assert.Equal(t, entities.RefKindBranch, record.Kind)
		assert.Equal(t, v500Hash, *record.LatestHash)
		assert.Equal(t, []time.Duration{time.Hour}, clock.Waits())
		require.Len(t, callTimes, 3)
		assert.Equal(t, start, callTimes[0])
		for _, at := range callTimes[1:] {
			assert.False(t, at.Before(reset))
		}
	})

	t.Run("should fail the reference when the context ends before a follow-up call", func(t *testing.T) {
		t.Parallel()

		// given
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		spy := &doubles.SpyTagRepository{
			Listings: map[string]repositories.TagListing{
				"actions/checkout": {Tags: []entities.TagMetadata{{Name: "v5.0.0", Hash: v500Hash}}},
			},
			OnCall: func(string) { cancel() },
		}
		ref := entitybuilders.NewReferenceBuilder().WithCurrentRef("main").BuildReference()
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")

		// when
		record := newResolver(spy).Resolve(ctx, clientCtx, ref)

		// then
		require.ErrorIs(t, record.Err, context.Canceled)
		assert.Equal(t, entities.StatusFailed, record.Status)
		assert.Nil(t, record.LatestVersion)
		assert.Equal(t, 1, spy.TotalCalls())
	})

	t.Run("should share one listing between concurrent resolutions of a repository", func(t *testing.T) {
		t.Parallel()

		// given
		gate := make(chan struct{})
		spy := &doubles.SpyTagRepository{
			Listings: map[string]repositories.TagListing{"actions/checkout": checkoutListing()},
			ListGate: gate,
		}
		clientCtx := entities.NewClientContext(entities.DefaultBaseURL, "")
		resolver := newResolver(spy)
		refs := []string{"v4", "v4.2.3", "v4.2.4", pinnedHash}

		// when
		var wg sync.WaitGroup
		records := make([]entities.ResolutionRecord, len(refs))
		for i, current := range refs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ref := entitybuilders.NewReferenceBuilder().WithCurrentRef(current).BuildReference()
				records[i] = resolver.Resolve(context.Background(), clientCtx, ref)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(gate)
		wg.Wait()

		// then
		for _, record := range records {
			require.NoError(t, record.Err)
		}
		assert.Equal(t, 1, spy.ListCalls("actions/checkout"))
	})
}
