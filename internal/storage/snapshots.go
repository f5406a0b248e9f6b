package storage

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
)

// DefaultIndexes are the unique indexes every store enforces.
var DefaultIndexes = []UniqueIndex{
	{
		Name:       constants.LogUniqueIndex,
		Collection: constants.CollectionLogs,
		Fields:     []string{constants.FieldOwner, constants.FieldHabitID, constants.FieldDate},
	},
}

// Snapshots turns a subscription into a channel that always holds the most
// recent decoded result set. Stale sets are dropped rather than queued. The
// channel is closed once ctx is done and the subscription has detached.
func Snapshots[T any](ctx context.Context, s Store, collection string, filters []Filter, decode func(Document) (T, error), l *log.Logger) (<-chan []T, error) {
	l = logger.OrDefault(l)
	out := make(chan []T, 1)

	unsub, err := s.Subscribe(ctx, collection, filters, func(docs []Document) {
		items := DecodeAll(docs, decode, l)
		select {
		case <-out:
		default:
		}
		out <- items
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		unsub()
		close(out)
	}()
	return out, nil
}

// DecodeAll decodes docs, skipping and logging any that fail.
func DecodeAll[T any](docs []Document, decode func(Document) (T, error), l *log.Logger) []T {
	items := make([]T, 0, len(docs))
	for _, d := range docs {
		item, err := decode(d)
		if err != nil {
			logger.OrDefault(l).Warn("Skipping malformed document", "id", d.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}
