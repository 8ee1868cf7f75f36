package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time.
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// compensation is the corrective policy applied when an optimistically
// applied operation fails its remote confirmation.
type compensation int

const (
	// keepLocalAndReport commits the optimistic collection anyway and
	// surfaces the error: user input is never lost on a failed create.
	keepLocalAndReport compensation = iota
	// rollbackToSnapshot restores the pre-operation collection. A record
	// split between stale-remote and edited-local is worse than a
	// rejected edit.
	rollbackToSnapshot
	// keepLocal keeps the optimistic collection and only logs. Re-adding
	// a deleted record surprises users more than a stray remote copy.
	keepLocal
)

// Service is the synchronization engine. It orchestrates the local cache and
// the remote store: optimistic apply, compensation on failure, and full-state
// refresh, with the remote list authoritative whenever it is available.
//
// The in-memory read model is guarded against concurrent readers, but
// mutating operations are not serialized against each other: the design
// assumes a single active writer per record.
type Service struct {
	cache      Cache
	remote     RemoteStore
	timeSource TimeSource

	mu       sync.RWMutex
	invoices []Invoice
	loading  bool
}

// NewService creates a Service seeded from the local cache. The collection
// reports loading until the first Refresh completes.
func NewService(cache Cache, remote RemoteStore) *Service {
	return NewServiceWithDeps(cache, remote, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with a custom time source for testing.
func NewServiceWithDeps(cache Cache, remote RemoteStore, timeSource TimeSource) *Service {
	return &Service{
		cache:      cache,
		remote:     remote,
		timeSource: timeSource,
		invoices:   cache.Load(),
		loading:    true,
	}
}

// Invoices returns a copy of the current collection.
func (s *Service) Invoices() []Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.invoices)
}

// Loading reports whether the initial refresh is still pending.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// RecentVendors returns up to n distinct vendor names, newest records first,
// for use as extraction disambiguation hints.
func (s *Service) RecentVendors(n int) []string {
	invs := s.Invoices()
	names := make([]string, 0, n)
	for i := len(invs) - 1; i >= 0 && len(names) < n; i-- {
		if invs[i].VendorName != "" {
			names = append(names, invs[i].VendorName)
		}
	}
	return lo.Uniq(names)
}

// Refresh pulls the full remote collection. A non-empty result replaces both
// the cache and the in-memory model; on failure the cached collection stands
// so the caller is never left empty over a transient network problem.
func (s *Service) Refresh(ctx context.Context) error {
	remote, err := s.remote.List(ctx)

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("refreshing from remote store: %w", err)
	}
	if len(remote) > 0 {
		s.commit(markSaved(remote))
	}
	return nil
}

// AddInvoice commits a record to both stores. Records without a usable
// invoice number are assigned the next one in sequence. Unlike update and
// delete, add holds its first local commit until the remote round trip
// resolves, since the authoritative collection may depend on server state.
// On remote failure the record is still appended locally and the error is
// surfaced so the caller can warn that sync is pending.
func (s *Service) AddInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	Normalize(&inv, s.timeSource.Now())
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = NextInvoiceNumber(s.Invoices())
	}
	inv.Status = StatusSaved

	err := s.reconcile(ctx, ActionCreate, inv, false, keepLocalAndReport, func(cur []Invoice) []Invoice {
		return append(cur, inv)
	})
	return inv, err
}

// UpdateInvoice replaces the record with the same ID. The edit is applied
// optimistically and rolled back if the remote store rejects it.
func (s *Service) UpdateInvoice(ctx context.Context, inv Invoice) error {
	Normalize(&inv, s.timeSource.Now())
	inv.Status = StatusSaved

	return s.reconcile(ctx, ActionUpdate, inv, true, rollbackToSnapshot, func(cur []Invoice) []Invoice {
		return lo.Map(cur, func(existing Invoice, _ int) Invoice {
			if existing.ID == inv.ID {
				return inv
			}
			return existing
		})
	})
}

// DeleteInvoice removes the record by ID. The local deletion is kept even if
// the remote delete fails.
func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	subject := Invoice{ID: id, InvoiceNumber: id, LineItems: []LineItem{}}

	return s.reconcile(ctx, ActionDelete, subject, true, keepLocal, func(cur []Invoice) []Invoice {
		return lo.Filter(cur, func(existing Invoice, _ int) bool {
			return existing.ID != id
		})
	})
}

// reconcile is the shared optimistic-apply-with-compensation state machine:
// snapshot, apply, remote confirmation, then either replace with the
// authoritative collection or compensate per the operation's policy.
func (s *Service) reconcile(ctx context.Context, action Action, subject Invoice, optimistic bool, comp compensation, apply func([]Invoice) []Invoice) error {
	before := s.Invoices()
	next := apply(cloneAll(before))
	if optimistic {
		s.commit(next)
	}

	authoritative, err := s.remote.Apply(ctx, action, subject)
	if err != nil {
		switch comp {
		case rollbackToSnapshot:
			s.commit(before)
			return fmt.Errorf("remote %s failed, change reverted: %w", action, err)
		case keepLocal:
			slog.Warn("Remote delete failed, keeping local deletion", "id", subject.ID, "error", err)
			return nil
		default:
			if !optimistic {
				s.commit(next)
			}
			return fmt.Errorf("remote %s failed, record kept locally: %w", action, err)
		}
	}

	if len(authoritative) > 0 {
		s.commit(markSaved(authoritative))
	} else if !optimistic {
		// Degenerate success: the server confirmed but returned nothing
		// usable. The optimistic collection stands; data is never dropped.
		s.commit(next)
	}
	return nil
}

// commit overwrites the cache and the in-memory model with the collection.
func (s *Service) commit(invs []Invoice) {
	s.cache.ReplaceAll(invs)
	s.mu.Lock()
	s.invoices = invs
	s.mu.Unlock()
}

func markSaved(invs []Invoice) []Invoice {
	return lo.Map(invs, func(inv Invoice, _ int) Invoice {
		inv.Status = StatusSaved
		return inv
	})
}
