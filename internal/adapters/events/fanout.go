package events

import (
	"context"

	"github.com/zeebo/errs"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// Fanout hands every event to each sink in order. All sinks run even when
// one fails; the failures are combined.
type Fanout []ports.AuditRepository

var _ ports.AuditRepository = Fanout(nil)

func (f Fanout) Log(ctx context.Context, event domain.AuditEvent) error {
	var group errs.Group
	for _, sink := range f {
		if sink == nil {
			continue
		}
		group.Add(sink.Log(ctx, event))
	}
	return group.Err()
}
