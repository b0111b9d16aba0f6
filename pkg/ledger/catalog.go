package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// CreateResource adds a catalog entry and returns its ID. The caller must
// be an authorized resource manager. IDs are assigned sequentially from 0
// and never reused.
func (l *Ledger) CreateResource(ctx context.Context, caller types.Account, nr types.NewResource, now time.Time) (types.ResourceID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !l.auth.IsAuthorizedManager(caller) {
		return 0, types.ErrNotManager
	}
	if strings.TrimSpace(nr.Name) == "" {
		return 0, types.ErrNameEmpty
	}
	if !nr.Category.Valid() {
		return 0, types.ErrInvalidCategory
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var r types.Resource
	err := l.serialize(ctx, func() error {
		m := l.begin()
		r = types.Resource{
			ID:        l.seq.Peek(),
			Name:      nr.Name,
			Category:  nr.Category,
			Custodian: nr.Custodian,
			CreatedAt: now.UTC().Truncate(time.Second),
		}
		m.create(r)
		m.events = append(m.events, types.ResourceCreated{ID: r.ID, Name: r.Name, Category: r.Category})

		if err := m.commit(ctx); err != nil {
			return err
		}
		l.seq.Advance()
		m.apply(ctx)
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.logger.Debug("resource created",
		"resource", r.ID, "name", r.Name, "category", r.Category, "caller", caller)
	return r.ID, nil
}
