package commands

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

// ResolveAll is the interface for resolving a batch of references.
type ResolveAll interface {
	Execute(ctx context.Context, clientCtx *entities.ClientContext, refs []entities.Reference) entities.ScanResult
}

// ResolveAllCommand fans resolutions out to a fixed pool of workers. Before every
// dispatch a worker waits on the shared rate-limit budget, so an exhausted
// budget suspends the whole pool until the reset time.
type ResolveAllCommand struct {
	resolver Resolver
	workers  int
	limiter  *rate.Limiter // shared client-side pacing; nil when disabled
}

// NewResolveAllCommand creates an orchestrator around the given resolver.
func NewResolveAllCommand(resolver Resolver, opts entities.RunOptions) *ResolveAllCommand {
	workers := opts.Workers
	if workers < 1 {
		workers = entities.DefaultWorkers
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &ResolveAllCommand{
		resolver: resolver,
		workers:  workers,
		limiter:  limiter,
	}
}

// Execute resolves every distinct reference once and returns one record per
// input reference. Once ctx is done no new resolution starts; references that
// were never dispatched come back as failed records.
func (it *ResolveAllCommand) Execute(
	ctx context.Context,
	clientCtx *entities.ClientContext,
	refs []entities.Reference,
) entities.ScanResult {
	unique, indexOf := dedupeReferences(refs)
	records := make([]entities.ResolutionRecord, len(unique))

	jobs := make(chan int, len(unique))
	for i := range unique {
		jobs <- i
	}
	close(jobs)

	workers := min(it.workers, max(len(unique), 1))
	logger.Debugf("Resolving %d distinct references with %d workers", len(unique), workers)

	var group errgroup.Group
	for id := range workers {
		group.Go(func() error {
			for i := range jobs {
				if err := it.awaitDispatch(ctx, clientCtx); err != nil {
					record := newRecord(unique[i])
					effectiveVersion(&record)
					records[i] = failedRecord(record, fmt.Errorf("not dispatched: %w", err))
					continue
				}
				logger.Debugf("[worker %d] resolving %s", id, unique[i].Uses())
				records[i] = it.resolver.Resolve(ctx, clientCtx, unique[i])
			}
			return nil
		})
	}
	_ = group.Wait() // workers never return an error

	result := entities.ScanResult{Records: make([]entities.ResolutionRecord, 0, len(refs))}
	for i, ref := range refs {
		record := records[indexOf[i]]
		record.Reference = ref
		result.Records = append(result.Records, record)

		if record.Status == entities.StatusFailed {
			result.Diagnostics = append(result.Diagnostics, entities.Diagnostic{
				Reference: ref,
				Reason:    record.Err.Error(),
				Err:       record.Err,
			})
		}
	}
	return result
}

// awaitDispatch blocks until a new remote lookup may start.
func (it *ResolveAllCommand) awaitDispatch(ctx context.Context, clientCtx *entities.ClientContext) error {
	if limit := clientCtx.RateLimit(); limit.Exhausted(clientCtx.Clock().Now()) {
		logger.Warnf("Rate limit exhausted, waiting until %s", limit.Reset.Format("15:04:05"))
	}
	if err := clientCtx.WaitForBudget(ctx); err != nil {
		return err
	}
	if it.limiter != nil {
		return it.limiter.Wait(ctx)
	}
	return nil
}

// dedupeReferences keeps the first reference of every resolution key and maps
// each input position to its distinct reference.
func dedupeReferences(refs []entities.Reference) ([]entities.Reference, []int) {
	unique := make([]entities.Reference, 0, len(refs))
	indexOf := make([]int, len(refs))
	seen := make(map[string]int, len(refs))

	for i, ref := range refs {
		key := ref.ResolutionKey()
		idx, ok := seen[key]
		if !ok {
			idx = len(unique)
			seen[key] = idx
			unique = append(unique, ref)
		}
		indexOf[i] = idx
	}
	return unique, indexOf
}
