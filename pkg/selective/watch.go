package selective

import (
	"context"

	"go.uber.org/zap"

	"github.com/stselect/stselect/internal/logging"
	"github.com/stselect/stselect/pkg/models"
)

// WatchedEvents are the daemon events after which cached answers for a
// folder are dropped.
var WatchedEvents = []string{"LocalIndexUpdated", "RemoteIndexUpdated", "FolderSummary"}

// Watch follows the daemon's event stream until ctx is done, invalidating
// the caches of the folder each event names. An empty folder watches all
// folders. fn, when non-nil, is called after each handled event.
//
// Watch returns nil when ctx ends and the subscription error when the
// daemon rejects the API key.
func (s *Session) Watch(ctx context.Context, folder string, fn func(models.Event)) error {
	events, errs := s.api.Subscribe(ctx, WatchedEvents)

	for ev := range events {
		f := ev.Folder()
		if f == "" || (folder != "" && f != folder) {
			continue
		}
		s.Invalidate(f)
		logging.WithContext(logging.WithFolder(ctx, f), s.log).Debug("event",
			zap.Int("id", ev.ID),
			zap.String("type", ev.Type))
		if fn != nil {
			fn(ev)
		}
	}

	if err := <-errs; err != nil {
		return err
	}
	return nil
}
