package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"profile-store/core/profile"
	"profile-store/core/store"
)

// numFetchWorkers bounds concurrent reads from stores that cannot page.
const numFetchWorkers = 8

// Index maps user ids to the copy held by one store.
type Index map[string]profile.Profile

// LoadIndex reads every profile held by a.
// Stores implementing store.Pager are read page by page. Stores implementing
// only store.IDLister are read one profile at a time by a worker pool.
func LoadIndex(ctx context.Context, a store.Adapter, pageSize int) (Index, error) {
	if p, ok := a.(store.Pager); ok {
		return loadPaged(ctx, p, pageSize)
	}
	l, ok := a.(store.IDLister)
	if !ok {
		return nil, fmt.Errorf("store %s cannot enumerate profiles", a.Name())
	}
	ids, err := l.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", a.Name(), err)
	}
	return fetchAll(ctx, a, ids)
}

func loadPaged(ctx context.Context, p store.Pager, pageSize int) (Index, error) {
	idx := make(Index)
	for offset := 0; ; offset += pageSize {
		page, err := p.ListProfiles(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, prof := range page {
			idx[prof.UserID] = prof
		}
		if len(page) < pageSize {
			return idx, nil
		}
	}
}

func fetchAll(ctx context.Context, a store.Adapter, ids []string) (Index, error) {
	idsCh := make(chan string, len(ids))
	for _, id := range ids {
		idsCh <- id
	}
	close(idsCh)

	var (
		mu   sync.Mutex
		idx  = make(Index, len(ids))
		errs []error
		wg   sync.WaitGroup
	)

	workers := numFetchWorkers
	if len(ids) < workers {
		workers = len(ids)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for id := range idsCh {
				p, err := a.GetProfile(ctx, id)
				mu.Lock()
				switch {
				case err != nil:
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
				case p != nil:
					idx[id] = *p
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, fmt.Errorf("fetch %d of %d %s profiles failed: %w", len(errs), len(ids), a.Name(), errors.Join(errs...))
	}
	return idx, nil
}
