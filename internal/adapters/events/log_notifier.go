package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log.Named("mutations")}
}

func (n *LogNotifier) Log(_ context.Context, event domain.AuditEvent) error {
	n.log.Info("mutation committed",
		zap.String("collection", event.Collection),
		zap.String("document_id", event.DocumentID),
		zap.String("action", event.Action),
		zap.String("actor", event.Actor),
		zap.Bool("trusted", event.Trusted),
		zap.Int64("affected", event.Affected))
	return nil
}
