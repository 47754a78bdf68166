package ledger

import (
	"context"
	"strings"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/domain/catalog"
	"tillsync/internal/reconcile"
)

// stockBook is the goods collection loaded once per write, so several
// lines of the same good accumulate on one copy.
type stockBook struct {
	items   []catalog.Good
	changed map[string]bool
}

func (s *Service) loadStock(ctx context.Context) (*stockBook, error) {
	items, err := s.goods.List(ctx)
	if err != nil {
		return nil, err
	}
	return &stockBook{items: items, changed: make(map[string]bool)}, nil
}

// match finds a good by id, or by name when no id was given.
func (b *stockBook) match(id, name string) *catalog.Good {
	if id != "" {
		for i := range b.items {
			if b.items[i].ID == id {
				return &b.items[i]
			}
		}
		return nil
	}
	if strings.TrimSpace(name) == "" {
		return nil
	}
	for i := range b.items {
		if catalog.SameName(b.items[i].Name, name) {
			return &b.items[i]
		}
	}
	return nil
}

func (b *stockBook) mark(g *catalog.Good) {
	b.changed[g.ID] = true
}

func (s *Service) saveStock(ctx context.Context, b *stockBook, now time.Time) error {
	for i := range b.items {
		g := &b.items[i]
		if !b.changed[g.ID] {
			continue
		}
		g.Touch(now)
		if err := s.goods.Put(ctx, *g); err != nil {
			return err
		}
	}
	return nil
}

type partyRecord[T any] interface {
	*T
	PartyRef() *catalog.Party
}

// matchParty resolves the debtor or creditor of a credit transaction.
// An id is authoritative: when given, the name is not consulted. The name
// is a legacy fallback and picks the first case-insensitive match.
// A nil result means nothing matched.
func matchParty[T entity.Record, P partyRecord[T]](ctx context.Context, coll *reconcile.Collection[T], id, name string) (*T, error) {
	if id != "" {
		rec, err := coll.Get(ctx, id)
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &rec, nil
	}
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	rec, ok, err := coll.Find(ctx, func(r T) bool {
		return catalog.SameName(P(&r).PartyRef().Name, name)
	})
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// adjustParty applies fn to a stored debtor or creditor and writes it back.
// A missing party is reported as found=false.
func adjustParty[T entity.Record, P partyRecord[T]](ctx context.Context, coll *reconcile.Collection[T], id string, fn func(*catalog.Party), now time.Time) (bool, error) {
	rec, err := coll.Get(ctx, id)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	party := P(&rec).PartyRef()
	fn(party)
	party.Touch(now)
	return true, coll.Put(ctx, rec)
}
