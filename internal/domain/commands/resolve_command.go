package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	"github.com/rios0rios0/pinbump/internal/domain/repositories"
)

// Resolver is the interface for the single-reference resolution step.
type Resolver interface {
	Resolve(ctx context.Context, clientCtx *entities.ClientContext, ref entities.Reference) entities.ResolutionRecord
}

// versionScheme selects which tags count as candidates for "latest".
type versionScheme struct {
	prefixed   bool // prefer tags written as "vX.Y.Z"
	prerelease bool // accept "-rc.1" style tags
}

var allSchemes = []versionScheme{ //nolint:gochecknoglobals // fixed enumeration
	{prefixed: true}, {prefixed: true, prerelease: true},
	{prefixed: false}, {prefixed: false, prerelease: true},
}

// cacheRef is the reserved tag-cache reference for the latest tag under this scheme.
func (s versionScheme) cacheRef() string {
	ref := entities.LatestRef + "/bare"
	if s.prefixed {
		ref = entities.LatestRef + "/v"
	}
	if s.prerelease {
		ref += "+pre"
	}
	return ref
}

// ResolveCommand discovers the latest version of one reference and the commit it
// resolves to. Lookups are cached in the ClientContext and concurrent listings of
// the same repository are collapsed into one remote call.
type ResolveCommand struct {
	repository  repositories.TagRepository
	policy      entities.BreakingPolicy
	callTimeout time.Duration
	listings    singleflight.Group
}

// NewResolveCommand creates a resolver backed by the given tag repository.
func NewResolveCommand(repository repositories.TagRepository, opts entities.RunOptions) *ResolveCommand {
	policy := opts.BreakingPolicy
	if !policy.Valid() {
		policy = entities.BreakingPolicyMajor
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = entities.DefaultCallTimeout
	}
	return &ResolveCommand{
		repository:  repository,
		policy:      policy,
		callTimeout: callTimeout,
	}
}

// Resolve never fails as a whole: a lookup error is recorded in the returned
// record with StatusFailed so sibling resolutions are unaffected.
func (it *ResolveCommand) Resolve(
	ctx context.Context,
	clientCtx *entities.ClientContext,
	ref entities.Reference,
) entities.ResolutionRecord {
	record := newRecord(ref)
	current, known := effectiveVersion(&record)

	latest, err := it.latestTag(ctx, clientCtx, ref, schemeFor(current, known))
	if err != nil {
		logger.Warnf("Failed to resolve %s: %v", ref.Uses(), err)
		return failedRecord(record, err)
	}

	if record.Kind != entities.RefKindHash {
		kind, classifyErr := it.classify(ctx, clientCtx, ref)
		if classifyErr != nil {
			logger.Warnf("Failed to resolve %s: %v", ref.Uses(), classifyErr)
			return failedRecord(record, classifyErr)
		}
		record.Kind = kind
	}

	hash, err := it.tagHash(ctx, clientCtx, ref, latest)
	if err != nil {
		logger.Warnf("Failed to resolve %s: %v", ref.Uses(), err)
		return failedRecord(record, err)
	}
	if hash == "" && !known && record.Kind == entities.RefKindHash {
		// a bare hash pin can only be compared commit to commit
		err = fmt.Errorf("%w: %s@%s", entities.ErrCommitUnresolved, ref.Identity(), latest.Name)
		logger.Warnf("Failed to resolve %s: %v", ref.Uses(), err)
		return failedRecord(record, err)
	}

	latestName := latest.Name
	record.LatestVersion = &latestName
	if hash != "" {
		record.LatestHash = &hash
	}
	record.PublishedAt = latest.PublishedAt

	if known {
		diff := it.policy.Diff(latest.Name, record.CurrentVersion)
		record.Severity = diff.Severity
		record.IsBreaking = diff.IsBreaking
		record.HasUpdate = entities.CompareVersions(latest.Name, record.CurrentVersion) > 0
	} else {
		record.Severity = entities.SeverityUnknown
		if record.Kind == entities.RefKindHash {
			record.HasUpdate = !entities.SameCommit(hash, ref.CurrentRef)
		} else {
			record.HasUpdate = latest.Name != ref.CurrentRef
		}
	}

	record.Status = entities.StatusUpToDate
	if record.HasUpdate {
		record.Status = entities.StatusUpdateAvailable
	}
	return record
}

// effectiveVersion fills the current and display versions of the record. A hash
// pin borrows its version from the adjacent annotation when there is one but is
// still displayed as the short hash.
func effectiveVersion(record *entities.ResolutionRecord) (entities.Version, bool) {
	ref := record.Reference

	if record.Kind == entities.RefKindHash {
		record.DisplayVersion = entities.ShortHash(ref.CurrentRef)
		if v, ok := entities.ParseVersion(ref.Annotation); ok {
			record.CurrentVersion = strings.TrimSpace(ref.Annotation)
			return v, true
		}
		return entities.Version{}, false
	}

	record.DisplayVersion = ref.CurrentRef
	if v, ok := entities.ParseVersion(tagName(ref.CurrentRef)); ok {
		record.CurrentVersion = tagName(ref.CurrentRef)
		return v, true
	}
	return entities.Version{}, false
}

// schemeFor follows the style of the current version; unknown versions follow
// the "vX.Y.Z" convention of most actions.
func schemeFor(current entities.Version, known bool) versionScheme {
	if !known {
		return versionScheme{prefixed: true}
	}
	return versionScheme{prefixed: current.HasPrefix, prerelease: current.Prerelease != ""}
}

// latestTag returns the highest tag of the repository for the scheme. On a cache
// miss it lists the repository once and fills the tag, hash and kind caches
// from that single response.
func (it *ResolveCommand) latestTag(
	ctx context.Context,
	clientCtx *entities.ClientContext,
	ref entities.Reference,
	scheme versionScheme,
) (entities.TagMetadata, error) {
	key := entities.TagKey(ref.Owner, ref.Repo, scheme.cacheRef())
	if latest, ok := clientCtx.GetTag(key); ok {
		logger.Debugf("Cache hit for %s", key)
		return latestOrError(ref, latest)
	}

	_, err, shared := it.listings.Do(strings.ToLower(ref.Identity()), func() (any, error) {
		// a flight that finished just before this one may already have filled the cache
		if _, ok := clientCtx.GetTag(key); ok {
			return nil, nil //nolint:nilnil // result is read from the cache
		}
		return nil, it.listTags(ctx, clientCtx, ref)
	})
	if shared {
		logger.Debugf("Shared tag listing for %s", ref.Identity())
	}
	if err != nil {
		return entities.TagMetadata{}, err
	}

	latest, _ := clientCtx.GetTag(key)
	return latestOrError(ref, latest)
}

func latestOrError(ref entities.Reference, latest entities.TagMetadata) (entities.TagMetadata, error) {
	if latest.Name == "" {
		return entities.TagMetadata{}, fmt.Errorf("%w in %s", entities.ErrNoVersionTags, ref.Identity())
	}
	return latest, nil
}

// listTags performs the one remote listing of a repository and caches its result.
func (it *ResolveCommand) listTags(
	ctx context.Context,
	clientCtx *entities.ClientContext,
	ref entities.Reference,
) error {
	if err := awaitBudget(ctx, clientCtx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, it.callTimeout)
	defer cancel()

	logger.Debugf("Listing tags of %s via %s", ref.Identity(), it.repository.Name())
	listing, resp, err := it.repository.ListTags(callCtx, ref.Owner, ref.Repo)
	clientCtx.UpdateRateLimitInfo(resp.Headers)
	if err != nil {
		return fmt.Errorf("failed to list tags of %s: %w", ref.Identity(), err)
	}

	candidates := make([]entities.TagMetadata, 0, len(listing.Tags))
	for _, tag := range listing.Tags {
		clientCtx.SetKind(entities.KindKey(ref.Owner, ref.Repo, tag.Name), entities.RefKindTag)
		if tag.Hash != "" {
			clientCtx.SetTagHash(entities.TagHashKey(ref.Owner, ref.Repo, tag.Name), tag.Hash)
		}

		normalized, ok := entities.NormalizeVersion(tag.Name)
		if !ok {
			continue
		}
		tag.Version = normalized
		clientCtx.SetTag(entities.TagKey(ref.Owner, ref.Repo, tag.Name), tag)
		candidates = append(candidates, tag)
	}
	for _, branch := range listing.Branches {
		key := entities.KindKey(ref.Owner, ref.Repo, branch)
		if _, isTag := clientCtx.GetKind(key); !isTag {
			clientCtx.SetKind(key, entities.RefKindBranch)
		}
	}

	for _, scheme := range allSchemes {
		// an empty entry records that the repository has no candidate, so it is not listed again
		clientCtx.SetTag(entities.TagKey(ref.Owner, ref.Repo, scheme.cacheRef()), highestTag(candidates, scheme))
	}
	return nil
}

// highestTag picks the numerically highest candidate. Tags written in the
// preferred style win when there is at least one of them.
func highestTag(candidates []entities.TagMetadata, scheme versionScheme) entities.TagMetadata {
	var best, bestAnyStyle entities.TagMetadata
	for _, tag := range candidates {
		v, ok := entities.ParseVersion(tag.Name)
		if !ok || (v.Prerelease != "" && !scheme.prerelease) {
			continue
		}
		if bestAnyStyle.Name == "" || entities.CompareVersions(tag.Name, bestAnyStyle.Name) > 0 {
			bestAnyStyle = tag
		}
		if v.HasPrefix != scheme.prefixed {
			continue
		}
		if best.Name == "" || entities.CompareVersions(tag.Name, best.Name) > 0 {
			best = tag
		}
	}
	if best.Name == "" {
		return bestAnyStyle
	}
	return best
}

// tagHash returns the commit of the latest tag, from the listing when it carried
// hashes, else from one targeted lookup. An empty hash means no pin target; an
// error means the lookup could not even be issued.
func (it *ResolveCommand) tagHash(
	ctx context.Context,
	clientCtx *entities.ClientContext,
	ref entities.Reference,
	latest entities.TagMetadata,
) (string, error) {
	if latest.Hash != "" {
		return latest.Hash, nil
	}

	key := entities.TagHashKey(ref.Owner, ref.Repo, latest.Name)
	if hash, ok := clientCtx.GetTagHash(key); ok {
		return hash, nil
	}

	if err := awaitBudget(ctx, clientCtx); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, it.callTimeout)
	defer cancel()

	hash, resp, err := it.repository.ResolveCommit(callCtx, ref.Owner, ref.Repo, latest.Name)
	clientCtx.UpdateRateLimitInfo(resp.Headers)
	if err != nil || hash == "" {
		logger.Warnf("Could not resolve commit of %s@%s: %v", ref.Identity(), latest.Name, err)
		return "", nil
	}

	clientCtx.SetTagHash(key, hash)
	return hash, nil
}

// classify decides whether a non-hash reference is a tag or a branch. Tags are
// known from the listing; anything else costs at most two lookups, cached. The
// error is set only when a lookup could not be issued.
func (it *ResolveCommand) classify(
	ctx context.Context,
	clientCtx *entities.ClientContext,
	ref entities.Reference,
) (entities.RefKind, error) {
	name := tagName(ref.CurrentRef)
	key := entities.KindKey(ref.Owner, ref.Repo, name)
	if kind, ok := clientCtx.GetKind(key); ok {
		return kind, nil
	}

	kind := entities.RefKindUnknown
	for _, candidate := range []struct {
		prefix string
		kind   entities.RefKind
	}{{"heads/", entities.RefKindBranch}, {"tags/", entities.RefKindTag}} {
		if err := awaitBudget(ctx, clientCtx); err != nil {
			return entities.RefKindUnknown, err
		}
		callCtx, cancel := context.WithTimeout(ctx, it.callTimeout)
		exists, resp, err := it.repository.RefExists(callCtx, ref.Owner, ref.Repo, candidate.prefix+name)
		cancel()
		clientCtx.UpdateRateLimitInfo(resp.Headers)
		if err != nil {
			if !errors.Is(err, entities.ErrRefNotFound) {
				logger.Debugf("Could not classify %s: %v", ref.Uses(), err)
				return entities.RefKindUnknown, nil
			}
			continue
		}
		if exists {
			kind = candidate.kind
			break
		}
	}

	clientCtx.SetKind(key, kind)
	return kind, nil
}

// awaitBudget holds a remote call back while the shared budget is exhausted.
func awaitBudget(ctx context.Context, clientCtx *entities.ClientContext) error {
	if limit := clientCtx.RateLimit(); limit.Exhausted(clientCtx.Clock().Now()) {
		logger.Warnf("Rate limit exhausted, waiting until %s", limit.Reset.Format("15:04:05"))
	}
	if err := clientCtx.WaitForBudget(ctx); err != nil {
		return fmt.Errorf("waiting for rate limit: %w", err)
	}
	return nil
}

// tagName strips "refs/" and "tags/" qualifiers from a ref.
func tagName(ref string) string {
	ref = strings.TrimPrefix(ref, "refs/")
	return strings.TrimPrefix(ref, "tags/")
}

func newRecord(ref entities.Reference) entities.ResolutionRecord {
	return entities.ResolutionRecord{
		Reference:  ref,
		CurrentRef: ref.CurrentRef,
		Kind:       entities.ClassifyLocal(ref.CurrentRef),
	}
}

func failedRecord(record entities.ResolutionRecord, err error) entities.ResolutionRecord {
	record.LatestVersion = nil
	record.LatestHash = nil
	record.PublishedAt = nil
	record.HasUpdate = false
	record.IsBreaking = false
	record.Severity = entities.SeverityUnknown
	record.Status = entities.StatusFailed
	record.Err = err
	return record
}
