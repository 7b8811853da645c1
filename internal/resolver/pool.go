package resolver

import (
	"context"
	"sync"

	"constituency-streets/internal/models"
)

// ResolveAll fans the records out over a worker pool. Workers share the
// read-only index and bridge without locking; results are funnelled to a
// single collector so the caller's aggregator sees one stream. Order is
// not preserved, which is fine, grouping is commutative.
func (r *Resolver) ResolveAll(ctx context.Context, records []models.StreetRecord, workers int) []models.ResolvedStreet {
	if workers <= 0 {
		workers = 4
	}

	in := make(chan models.StreetRecord)
	out := make(chan models.ResolvedStreet, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range in {
				for _, resolved := range r.Resolve(rec) {
					select {
					case out <- resolved:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(in)
		for _, rec := range records {
			select {
			case in <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]models.ResolvedStreet, 0, len(records))
	for resolved := range out {
		results = append(results, resolved)
	}
	return results
}
