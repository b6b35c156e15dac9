//go:build integration || unit || test

// Package repositorydoubles provides test doubles (spies, stubs, dummies) for
// repository interfaces. These are hand-crafted implementations, no mock frameworks.
package repositorydoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	"github.com/rios0rios0/pinbump/internal/domain/repositories"
)

// SpyTagRepository implements repositories.TagRepository as a configurable spy.
// Keys are "owner/repo" for listings and "owner/repo@ref" for lookups.
// It is safe for concurrent use.
type SpyTagRepository struct {
	SourceName string

	// --- ListTags ---
	Listings map[string]repositories.TagListing
	ListErrs map[string]error
	// ListGate, when set, blocks every ListTags call until it is closed.
	ListGate chan struct{}

	// --- ResolveCommit ---
	Commits   map[string]string
	CommitErr error

	// --- RefExists ---
	ExistingRefs map[string]bool
	RefErr       error

	// Headers is returned with every response, failed ones included.
	Headers map[string]any
	// OnCall, when set, runs at the start of every call with its key.
	OnCall func(key string)

	mu             sync.Mutex
	listCalls      map[string]int
	resolveCalls   []string
	refExistsCalls []string
}

var _ repositories.TagRepository = (*SpyTagRepository)(nil)

func (s *SpyTagRepository) Name() string {
	if s.SourceName == "" {
		return "spy"
	}
	return s.SourceName
}

func (s *SpyTagRepository) ListTags(
	ctx context.Context,
	owner, repo string,
) (repositories.TagListing, repositories.Response, error) {
	key := owner + "/" + repo
	s.notify(key)
	s.mu.Lock()
	if s.listCalls == nil {
		s.listCalls = make(map[string]int)
	}
	s.listCalls[key]++
	s.mu.Unlock()

	if s.ListGate != nil {
		select {
		case <-s.ListGate:
		case <-ctx.Done():
			return repositories.TagListing{}, s.response(), ctx.Err()
		}
	}

	if err := s.ListErrs[key]; err != nil {
		return repositories.TagListing{}, s.response(), err
	}
	listing, ok := s.Listings[key]
	if !ok {
		return repositories.TagListing{}, s.response(), fmt.Errorf("%w: %s", entities.ErrRefNotFound, key)
	}
	return listing, s.response(), nil
}

func (s *SpyTagRepository) ResolveCommit(
	_ context.Context,
	owner, repo, ref string,
) (string, repositories.Response, error) {
	key := owner + "/" + repo + "@" + ref
	s.notify(key)
	s.mu.Lock()
	s.resolveCalls = append(s.resolveCalls, key)
	s.mu.Unlock()

	if s.CommitErr != nil {
		return "", s.response(), s.CommitErr
	}
	hash, ok := s.Commits[key]
	if !ok {
		return "", s.response(), fmt.Errorf("%w: %s", entities.ErrRefNotFound, key)
	}
	return hash, s.response(), nil
}

func (s *SpyTagRepository) RefExists(
	_ context.Context,
	owner, repo, ref string,
) (bool, repositories.Response, error) {
	key := owner + "/" + repo + "@" + ref
	s.notify(key)
	s.mu.Lock()
	s.refExistsCalls = append(s.refExistsCalls, key)
	s.mu.Unlock()

	if s.RefErr != nil {
		return false, s.response(), s.RefErr
	}
	return s.ExistingRefs[key], s.response(), nil
}

// ListCalls returns how many times the repository "owner/repo" was listed.
func (s *SpyTagRepository) ListCalls(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls[identity]
}

// ResolveCalls returns the "owner/repo@ref" keys passed to ResolveCommit.
func (s *SpyTagRepository) ResolveCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resolveCalls...)
}

// RefExistsCalls returns the "owner/repo@ref" keys passed to RefExists.
func (s *SpyTagRepository) RefExistsCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.refExistsCalls...)
}

// TotalCalls counts every remote call made so far.
func (s *SpyTagRepository) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.resolveCalls) + len(s.refExistsCalls)
	for _, count := range s.listCalls {
		total += count
	}
	return total
}

func (s *SpyTagRepository) notify(key string) {
	if s.OnCall != nil {
		s.OnCall(key)
	}
}

func (s *SpyTagRepository) response() repositories.Response {
	headers := make(map[string]any, len(s.Headers))
	for key, value := range s.Headers {
		headers[strings.ToLower(key)] = value
	}
	return repositories.Response{Headers: headers}
}
