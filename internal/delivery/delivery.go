// Package delivery sends rendered briefs to the CRM, email and Motion, and
// fans one brief out to every configured channel.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/lifecycle"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/render"
	"github.com/longhornrumble/dealprep/internal/util"
)

// ErrNotRouted means the trigger named no target for the channel.
var ErrNotRouted = errors.New("no routing target")

// Adapter delivers to one channel.
type Adapter interface {
	Channel() lifecycle.Channel
	Deliver(ctx context.Context, v render.Views, routing input.Routing) error
}

// FanOut runs every adapter concurrently and waits for all of them. Branches
// share no cancellation: one failing or panicking channel does not stop the
// others. Channels without an adapter stay not_attempted.
func FanOut(ctx context.Context, adapters []Adapter, v render.Views, routing input.Routing, now func() time.Time, log logrus.FieldLogger) map[lifecycle.Channel]lifecycle.Delivery {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	out := make(map[lifecycle.Channel]lifecycle.Delivery, len(lifecycle.Channels()))
	for _, ch := range lifecycle.Channels() {
		out[ch] = lifecycle.Delivery{Status: lifecycle.DeliveryNotAttempted}
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, a := range adapters {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			ch := a.Channel()
			start := now()
			err := deliverSafe(ctx, a, v, routing)

			entry := logger.ForRun(log, v.RunID).WithFields(logrus.Fields{
				"stage":    "delivery",
				"channel":  string(ch),
				"duration": time.Since(start).String(),
			})
			var d lifecycle.Delivery
			if err != nil {
				msg := util.RedactSecrets(err.Error())
				d = lifecycle.Failed(start, msg)
				logger.Err(entry, err).Warn("delivery failed")
			} else {
				d = lifecycle.Succeeded(start)
				entry.Info("delivered")
			}
			mu.Lock()
			out[ch] = d
			mu.Unlock()
		}(a)
	}
	wg.Wait()
	return out
}

func deliverSafe(ctx context.Context, a Adapter, v render.Views, routing input.Routing) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Deliver(ctx, v, routing)
}
