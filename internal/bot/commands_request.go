package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fallenrobot/fallenbot/internal/domain"
	"github.com/fallenrobot/fallenbot/internal/services"
	"github.com/fallenrobot/fallenbot/internal/utils"
)

const (
	requestUsage = "📋 *Usage:* `/request <anime name>`\n_Example:_ `/request Attack on Titan`"
	storeFailure = "⚠️ Something went wrong on our side. Please try again later."
)

func (c *commands) request(ctx context.Context, call *Call) string {
	msg := call.Msg
	if call.Args == "" {
		_, _ = call.Reply(requestUsage)
		return OutcomeRejected
	}

	// Cheap checks first so spam never reaches the catalog or shows progress.
	if err := c.Requests.Admissible(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		return c.replyRejection(call, err)
	}

	interim, err := call.Reply(fmt.Sprintf("🔍 Checking *%s* on AniList...", md(call.Args)))
	if err != nil {
		return OutcomeError
	}

	req, err := c.Requests.Submit(ctx, msg.From.ID, msg.Chat.ID, call.Args)
	if err != nil {
		text, outcome := renderSubmitError(call.Args, err)
		if outcome == OutcomeError {
			call.Log.Error().Err(err).Msg("submit failed")
		} else {
			call.Log.Debug().Err(err).Msg("submit rejected")
		}
		call.Edit(interim, text, false)
		return outcome
	}

	call.Edit(interim, renderSubmitted(req), true)
	return OutcomeOK
}

// replyRejection answers an Admissible failure.
func (c *commands) replyRejection(call *Call, err error) string {
	text, outcome := renderSubmitError(call.Args, err)
	if outcome == OutcomeError {
		call.Log.Error().Err(err).Msg("admission check failed")
	} else {
		call.Log.Debug().Err(err).Msg("submit rejected")
	}
	_, _ = call.Reply(text)
	return outcome
}

// renderSubmitError maps a Submit error to its reply and metric outcome.
func renderSubmitError(query string, err error) (string, string) {
	var (
		cd  *services.CooldownError
		pl  *services.PendingLimitError
		nr  *services.NotRecognizedError
		dup *services.DuplicateError
	)
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		return requestUsage, OutcomeRejected
	case errors.As(err, &cd):
		secs := int64((cd.Remaining + time.Second - 1) / time.Second)
		return fmt.Sprintf("⏳ Slow down! Wait *%dm %ds* before your next request.", secs/60, secs%60), OutcomeRejected
	case errors.As(err, &pl):
		return fmt.Sprintf("❌ You already have *%d* unresolved requests.\nPlease wait for them to be fulfilled first.", pl.Count), OutcomeRejected
	case errors.As(err, &nr):
		return fmt.Sprintf("❌ *\"%s\"* is not recognised as a valid anime.\n\n"+
			"Only real anime titles (verified via AniList) are accepted.\n\n"+
			"_Tip:_ find the exact title on [AniList](https://anilist.co) first.", md(nr.Query)), OutcomeRejected
	case errors.As(err, &dup):
		return fmt.Sprintf("⚠️ *%s* is already in the pending list!", md(dup.Title)), OutcomeRejected
	default:
		return storeFailure, OutcomeError
	}
}

func renderSubmitted(req *domain.Request) string {
	var b strings.Builder
	b.WriteString("✅ *Request Submitted!*\n\n")
	fmt.Fprintf(&b, "🎬 *Anime:* [%s](%s)\n", md(req.ValidatedTitle), req.AnilistURL)
	if e := req.Entry; e != nil {
		if e.Native != "" {
			fmt.Fprintf(&b, "   _(%s)_\n", md(e.Native))
		}
		episodes := "?"
		if e.Episodes > 0 {
			episodes = fmt.Sprint(e.Episodes)
		}
		score := "N/A"
		if e.Score > 0 {
			score = fmt.Sprintf("%d/100", e.Score)
		}
		fmt.Fprintf(&b, "📺 *Episodes:* `%s`\n", episodes)
		fmt.Fprintf(&b, "📊 *Status:* `%s`\n", e.Status)
		fmt.Fprintf(&b, "⭐ *Score:* `%s`\n", score)
	}
	fmt.Fprintf(&b, "\n🔖 *Request ID:* `#%d`\n_Admins will review it soon._", req.ID)
	return b.String()
}

func (c *commands) myRequests(ctx context.Context, call *Call) string {
	msg := call.Msg
	rows, err := c.Requests.ListMine(ctx, msg.From.ID, msg.Chat.ID, 0)
	if err != nil {
		call.Log.Error().Err(err).Msg("list own requests failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	if len(rows) == 0 {
		_, _ = call.Reply("You have no requests in this chat yet.")
		return OutcomeOK
	}

	lines := []string{"📋 *Your Requests:*\n"}
	for _, r := range rows {
		icon := "⏳"
		if r.Fulfilled {
			icon = "✅"
		}
		lines = append(lines, fmt.Sprintf("%s `#%d` - %s", icon, r.ID, titleLink(r)))
	}
	_, _ = call.Reply(strings.Join(lines, "\n"))
	return OutcomeOK
}

func (c *commands) pending(ctx context.Context, call *Call) string {
	chat := call.Msg.Chat
	rows, err := c.Requests.ListPending(ctx, chat.ID)
	if err != nil {
		call.Log.Error().Err(err).Msg("list pending failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	if len(rows) == 0 {
		_, _ = call.Reply("✨ No pending requests right now!")
		return OutcomeOK
	}

	title := chat.Title
	if title == "" {
		title = "this chat"
	}
	lines := []string{fmt.Sprintf("📋 *Pending Requests - %s:*\n", md(title))}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("• `#%d` - %s\n   _user_ `%d`", r.ID, titleLink(r), r.UserID))
	}
	lines = append(lines, "\n`/fulfill <id>` · `/delrequest <id>`")
	_, _ = call.Reply(strings.Join(lines, "\n"))
	return OutcomeOK
}

func (c *commands) fulfill(ctx context.Context, call *Call) string {
	id, ok := utils.ParseID(firstArg(call.Args))
	if !ok {
		_, _ = call.Reply("Usage: `/fulfill <request id>`")
		return OutcomeRejected
	}
	found, err := c.Requests.Fulfill(ctx, id)
	if err != nil {
		call.Log.Error().Err(err).Int64("request.id", id).Msg("fulfil failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	if !found {
		_, _ = call.Reply(fmt.Sprintf("❌ Request `#%d` not found.", id))
		return OutcomeRejected
	}
	_, _ = call.Reply(fmt.Sprintf("✅ Request `#%d` marked as *fulfilled*!", id))
	return OutcomeOK
}

func (c *commands) delete(ctx context.Context, call *Call) string {
	id, ok := utils.ParseID(firstArg(call.Args))
	if !ok {
		_, _ = call.Reply("Usage: `/delrequest <request id>`")
		return OutcomeRejected
	}
	found, err := c.Requests.Delete(ctx, id)
	if err != nil {
		call.Log.Error().Err(err).Int64("request.id", id).Msg("delete failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	if !found {
		_, _ = call.Reply(fmt.Sprintf("❌ Request `#%d` not found.", id))
		return OutcomeRejected
	}
	_, _ = call.Reply(fmt.Sprintf("🗑️ Request `#%d` deleted.", id))
	return OutcomeOK
}

// titleLink renders a request title, linked when the catalog URL is known.
func titleLink(r domain.Request) string {
	if r.AnilistURL == "" {
		return md(r.ValidatedTitle)
	}
	return fmt.Sprintf("[%s](%s)", md(r.ValidatedTitle), r.AnilistURL)
}

func firstArg(args string) string {
	if f := strings.Fields(args); len(f) > 0 {
		return f[0]
	}
	return ""
}
