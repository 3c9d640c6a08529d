package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stselect/stselect/pkg/models"
)

const (
	reconnectMin = 1 * time.Second
	reconnectMax = 30 * time.Second

	// Daemon-side long-poll timeout.
	pollTimeout = 60 * time.Second
)

// Events long-polls /rest/events for events after since. An empty types
// slice subscribes to the daemon's default set.
func (c *Client) Events(ctx context.Context, since int, types []string, timeout time.Duration) ([]models.Event, error) {
	q := url.Values{"since": {strconv.Itoa(since)}}
	if len(types) > 0 {
		q.Set("events", strings.Join(types, ","))
	}
	if timeout > 0 {
		q.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	}

	var events []models.Event
	if err := c.do(ctx, c.pollClient, http.MethodGet, "events", q, nil, &events); err != nil {
		if absent(err) {
			return []models.Event{}, nil
		}
		return nil, err
	}
	return events, nil
}

// Subscribe polls the event endpoint until ctx is done and returns a
// channel of events. An authentication failure ends the subscription and
// is sent on the error channel; other failures reconnect with backoff.
func (c *Client) Subscribe(ctx context.Context, types []string) (<-chan models.Event, <-chan error) {
	events := make(chan models.Event, 100)
	errs := make(chan error, 1)

	go c.subscribeLoop(ctx, types, events, errs)

	return events, errs
}

func (c *Client) subscribeLoop(ctx context.Context, types []string, events chan<- models.Event, errs chan<- error) {
	defer close(events)
	defer close(errs)

	reconnectDelay := reconnectMin
	since := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := c.Events(ctx, since, types, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if _, ok := AsAuth(err); ok {
				errs <- err
				return
			}

			c.log.Warn("event poll failed, reconnecting",
				zap.Error(err),
				zap.Duration("delay", reconnectDelay))

			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}

			reconnectDelay *= 2
			if reconnectDelay > reconnectMax {
				reconnectDelay = reconnectMax
			}
			continue
		}

		reconnectDelay = reconnectMin
		for _, ev := range batch {
			if ev.ID <= since {
				continue
			}
			since = ev.ID
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
