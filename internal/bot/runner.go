package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Sweeper evicts expired in-memory state and reports how much went.
type Sweeper func() int

// Runner long-polls updates and dispatches each on its own goroutine.
type Runner struct {
	Updates Updater
	Router  *Router

	PollTimeout time.Duration
	// HandlerTimeout bounds one update; in-flight handlers survive Run's
	// cancellation until it expires.
	HandlerTimeout time.Duration

	// Sweepers run every JanitorEvery (default 1m).
	Sweepers     map[string]Sweeper
	JanitorEvery time.Duration
}

// Run blocks until ctx is cancelled or the update channel closes, then
// waits for in-flight handlers.
func (r *Runner) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(r.PollTimeout / time.Second)
	updates := r.Updates.GetUpdatesChan(u)

	every := r.JanitorEvery
	if every <= 0 {
		every = time.Minute
	}
	janitor := time.NewTicker(every)
	defer janitor.Stop()

	// Handlers finish their work after shutdown starts.
	base := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()

	log.Info().Dur("poll_timeout", r.PollTimeout).Msg("bot polling started")
	for {
		select {
		case <-ctx.Done():
			r.Updates.StopReceivingUpdates()
			log.Info().Msg("bot polling stopped, draining handlers")
			return nil
		case upd, ok := <-updates:
			if !ok {
				log.Warn().Msg("update channel closed")
				return nil
			}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				hctx, cancel := r.handlerContext(base)
				defer cancel()
				r.Router.Dispatch(hctx, upd)
			}(upd)
		case <-janitor.C:
			r.sweep()
		}
	}
}

func (r *Runner) handlerContext(base context.Context) (context.Context, context.CancelFunc) {
	if r.HandlerTimeout > 0 {
		return context.WithTimeout(base, r.HandlerTimeout)
	}
	return context.WithCancel(base)
}

func (r *Runner) sweep() {
	for name, fn := range r.Sweepers {
		if n := fn(); n > 0 {
			log.Debug().Str("sweeper", name).Int("evicted", n).Msg("janitor sweep")
		}
	}
}
