//go:build integration || unit || test

package commanddoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"context"
	"sync"

	"github.com/rios0rios0/pinbump/internal/domain/commands"
	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

// StubResolver is a stub implementation of commands.Resolver. Records are keyed
// by Reference.Uses(); unknown references resolve as up to date.
type StubResolver struct {
	Records map[string]entities.ResolutionRecord
	// OnResolve, when set, runs before the record is returned.
	OnResolve func(ctx context.Context, ref entities.Reference)

	mu    sync.Mutex
	calls []entities.Reference
}

var _ commands.Resolver = (*StubResolver)(nil)

func (s *StubResolver) Resolve(
	ctx context.Context,
	_ *entities.ClientContext,
	ref entities.Reference,
) entities.ResolutionRecord {
	s.mu.Lock()
	s.calls = append(s.calls, ref)
	s.mu.Unlock()

	if s.OnResolve != nil {
		s.OnResolve(ctx, ref)
	}

	record, ok := s.Records[ref.Uses()]
	if !ok {
		record = entities.ResolutionRecord{
			CurrentRef:     ref.CurrentRef,
			DisplayVersion: ref.CurrentRef,
			Kind:           entities.ClassifyLocal(ref.CurrentRef),
			Status:         entities.StatusUpToDate,
		}
	}
	record.Reference = ref
	return record
}

// Calls returns the references resolved so far, in call order.
func (s *StubResolver) Calls() []entities.Reference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.Reference(nil), s.calls...)
}
