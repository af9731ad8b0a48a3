package bot

import (
	"context"
	"strconv"
	"time"

	"github.com/fallenrobot/fallenbot/internal/animechan"
	"github.com/fallenrobot/fallenbot/internal/domain"
	"github.com/fallenrobot/fallenbot/internal/nekos"
	"github.com/fallenrobot/fallenbot/internal/sysutil"
)

// RequestService is the request pipeline as seen by the bot.
type RequestService interface {
	Admissible(ctx context.Context, userID, chatID int64) error
	Submit(ctx context.Context, userID, chatID int64, rawText string) (*domain.Request, error)
	ListMine(ctx context.Context, userID, chatID int64, limit int) ([]domain.Request, error)
	ListPending(ctx context.Context, chatID int64) ([]domain.Request, error)
	Fulfill(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (domain.RequestStats, error)
}

// Reactions fetches reaction GIFs.
type Reactions interface {
	Random(ctx context.Context, action string) (*nekos.Reaction, error)
}

// Subscriptions is the bot-wide force-subscribe channel list.
type Subscriptions interface {
	Add(ctx context.Context, channelID, addedBy int64) (bool, error)
	Remove(ctx context.Context, channelID int64) (bool, error)
	Channels(ctx context.Context) ([]int64, error)
}

// Quotes fetches anime quotes.
type Quotes interface {
	Random(ctx context.Context) (*animechan.Quote, error)
}

// Deps are the collaborators of the built-in commands.
type Deps struct {
	Requests  RequestService
	Reactions Reactions
	// Channels enables force-subscribe when set.
	Channels Subscriptions
	Quotes   Quotes
	// BotID is the bot's own user id, used to check it administers a
	// channel before gating on it. Zero skips the check.
	BotID int64

	// Started is the process start, reported by /ping and /botstats.
	Started  time.Time
	DiskPath string
	// HostStats defaults to sysutil.CollectHostStats.
	HostStats func(ctx context.Context, started time.Time, diskPath string) (sysutil.HostStats, error)
}

type commands struct {
	Deps
	router *Router
}

// Register installs the built-in command set on r.
func Register(r *Router, d Deps) {
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	if d.HostStats == nil {
		d.HostStats = sysutil.CollectHostStats
	}
	c := &commands{Deps: d, router: r}

	r.Register("start", Command{Handler: c.help, Ungated: true})
	r.Register("help", Command{Handler: c.help, Description: "show this message", Ungated: true})

	r.Register("request", Command{
		Handler:     c.request,
		Description: "`<anime name>` submit a request (must be a real AniList title)",
	}, "req")
	r.Register("myrequests", Command{
		Handler:     c.myRequests,
		Description: "see your own requests and their status",
	})
	r.Register("requests", Command{
		Handler:     c.pending,
		Description: "view all pending requests",
		Access:      AccessAdmin,
		Denied:      "» Only admins can view the request list!",
	})
	r.Register("fulfill", Command{
		Handler:     c.fulfill,
		Description: "`<id>` mark a request fulfilled",
		Access:      AccessAdmin,
		Denied:      "» Only admins can fulfill requests!",
	}, "fulfil")
	r.Register("delrequest", Command{
		Handler:     c.delete,
		Description: "`<id>` delete a request",
		Access:      AccessAdmin,
		Denied:      "» Only admins can delete requests!",
	})

	if d.Channels != nil {
		r.Register("addfsub", Command{
			Handler:     c.addFSub,
			Description: "`<channel_id>` require users to join a channel",
			Access:      AccessAdmin,
			Denied:      "» Only admins can add FSub channels!",
		})
		r.Register("delfsub", Command{
			Handler:     c.delFSub,
			Description: "`<channel_id>` stop requiring a channel",
			Access:      AccessAdmin,
			Denied:      "» Only admins can remove FSub channels!",
		})
		r.Register("fsublist", Command{
			Handler:     c.listFSub,
			Description: "list force-subscribe channels",
			Access:      AccessAdmin,
			Denied:      "» Only admins can view the FSub list!",
		})
		r.UseGate(c.subscribed)
	}

	r.Register("stats", Command{Handler: c.stats, Description: "request statistics", Access: AccessSudo})
	r.Register("botstats", Command{Handler: c.botStats, Description: "host and process statistics", Access: AccessSudo})
	r.Register("ping", Command{Handler: c.ping, Description: "round-trip latency and uptime", Access: AccessSudo})

	if d.Quotes != nil {
		r.Register("aq", Command{Handler: c.quote, Description: "a random anime quote"}, "animequote")
	}
	if d.Reactions != nil {
		for _, a := range nekos.Actions {
			r.Register(a.Name, Command{Handler: c.reaction(a)})
		}
	}
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
