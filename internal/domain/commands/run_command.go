package commands

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
	infraRepos "github.com/rios0rios0/pinbump/internal/infrastructure/repositories"
)

// ErrAllResolutionsFailed is returned when not a single reference could be resolved.
var ErrAllResolutionsFailed = errors.New("all resolutions failed")

// Run is the interface for the run command.
type Run interface {
	Execute(ctx context.Context, settings *entities.Settings, scans []ScanInput) (entities.ScanResult, error)
}

// ScanInput is the list of references collected by one scan pass.
type ScanInput struct {
	Name       string
	References []entities.Reference
}

// RunCommand orchestrates the full resolution flow:
// build the client context -> resolve every scan pass -> merge the results.
// All passes of one run share the same caches and rate-limit budget.
type RunCommand struct {
	registry *infraRepos.TagRepositoryRegistry
	clock    entities.Clock
}

// NewRunCommand creates a new RunCommand with the given registry.
func NewRunCommand(registry *infraRepos.TagRepositoryRegistry, clock entities.Clock) *RunCommand {
	return &RunCommand{
		registry: registry,
		clock:    clock,
	}
}

// Execute resolves every scan pass and returns the merged result. Per-reference
// failures are reported as failed records; an error is returned only when the
// run cannot start or every reference failed.
func (it *RunCommand) Execute(
	ctx context.Context,
	settings *entities.Settings,
	scans []ScanInput,
) (entities.ScanResult, error) {
	clientCtx := entities.NewClientContextWithClock(settings.BaseURL, settings.Token, it.clock)
	if !clientCtx.HasToken() {
		logger.Warn("No token configured, anonymous requests are heavily rate limited")
	}

	repository, err := it.registry.Get(settings.Source, clientCtx)
	if err != nil {
		return entities.ScanResult{}, err
	}

	opts := entities.NewRunOptions(settings)
	orchestrator := NewResolveAllCommand(NewResolveCommand(repository, opts), opts)

	results := make([]entities.ScanResult, 0, len(scans))
	for _, scan := range scans {
		logger.Infof("Resolving %d references of %q via %s", len(scan.References), scan.Name, repository.Name())
		result := orchestrator.Execute(ctx, clientCtx, scan.References)
		result.Name = scan.Name
		results = append(results, result)
	}

	merged := entities.MergeScanResults(results...)
	summary := merged.Summary()
	stats := clientCtx.CacheStats()
	logger.Infof(
		"Run complete: %d updates available, %d up to date, %d failed",
		summary.Updates, summary.UpToDate, summary.Failed,
	)
	logger.Debugf("Cache: %d hits, %d misses", stats.Hits, stats.Misses)
	if limit := clientCtx.RateLimit(); limit.Known {
		logger.Debugf("Rate limit: %d remaining, resets at %s", limit.Remaining, limit.Reset.Format("15:04:05"))
	}

	if len(merged.Records) > 0 && summary.Failed == len(merged.Records) {
		return merged, fmt.Errorf("%w: %d references", ErrAllResolutionsFailed, summary.Failed)
	}
	return merged, nil
}
