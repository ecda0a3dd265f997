package store

import "context"

// Watch subscriptions deliver the current value immediately, then a fresh
// value after every committed write to the store. Delivery is latest-wins:
// a slow consumer sees the newest state, not every intermediate one.

// WatchApps streams the full app list. The channel closes when ctx ends.
func (s *Store) WatchApps(ctx context.Context) <-chan []*InstalledApp {
	return watch(ctx, s, s.ListApps)
}

// WatchAppsWithUpdates streams the apps that currently have updates.
func (s *Store) WatchAppsWithUpdates(ctx context.Context) <-chan []*InstalledApp {
	return watch(ctx, s, s.ListAppsWithUpdates)
}

// WatchUpdateCount streams the count of apps with updates.
func (s *Store) WatchUpdateCount(ctx context.Context) <-chan int {
	return watch(ctx, s, s.UpdateCount)
}

// subscribe registers a signal channel that receives one token after every
// committed write. The returned cancel func must be called to release it.
func (s *Store) subscribe() (<-chan struct{}, func()) {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()

	id := s.nextWatch
	s.nextWatch++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch

	return ch, func() {
		s.watchersMu.Lock()
		delete(s.watchers, id)
		s.watchersMu.Unlock()
	}
}

// notifyWatchers signals all subscriptions without blocking: a pending,
// uncollected signal already covers this write.
func (s *Store) notifyWatchers() {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()

	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// watch adapts a point query into a change stream. Query errors end the
// stream; the store is local, so a failing query means the store is gone.
func watch[T any](ctx context.Context, s *Store, query func() (T, error)) <-chan T {
	out := make(chan T, 1)
	signal, unsubscribe := s.subscribe()

	go func() {
		defer close(out)
		defer unsubscribe()

		emit := func() bool {
			v, err := query()
			if err != nil {
				return false
			}
			// Latest-wins: drop a stale undelivered value first.
			select {
			case <-out:
			default:
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return false
			}
			return true
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				if !emit() {
					return
				}
			}
		}
	}()

	return out
}
