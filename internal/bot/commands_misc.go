package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fallenrobot/fallenbot/internal/nekos"
	"github.com/fallenrobot/fallenbot/internal/sysutil"
)

func (c *commands) help(_ context.Context, call *Call) string {
	var b strings.Builder
	b.WriteString("*Anime Request System*\n")

	section := Access(-1)
	for _, e := range c.router.Help() {
		if e.Access != section {
			section = e.Access
			switch section {
			case AccessUser:
				b.WriteString("\n*User commands:*\n")
			case AccessAdmin:
				b.WriteString("\n*Admin commands:*\n")
			case AccessSudo:
				b.WriteString("\n*Sudo commands:*\n")
			}
		}
		fmt.Fprintf(&b, " • /%s %s\n", e.Name, e.Description)
	}

	if c.Reactions != nil {
		names := make([]string, 0, len(nekos.Actions))
		for _, a := range nekos.Actions {
			names = append(names, "/"+a.Name)
		}
		fmt.Fprintf(&b, "\n*Reactions:* %s\n_Reply to a user's message to target them!_\n", strings.Join(names, " "))
	}
	_, _ = call.Reply(b.String())
	return OutcomeOK
}

func (c *commands) stats(ctx context.Context, call *Call) string {
	st, err := c.Requests.Stats(ctx)
	if err != nil {
		call.Log.Error().Err(err).Msg("stats failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	_, _ = call.Reply(fmt.Sprintf("📊 *Request Stats*\n\n"+
		"• Total: `%d`\n"+
		"• Pending: `%d`\n"+
		"• Requesters: `%d`\n"+
		"• Chats: `%d`", st.Total, st.Pending, st.Users, st.Chats))
	return OutcomeOK
}

func (c *commands) botStats(ctx context.Context, call *Call) string {
	hs, err := c.HostStats(ctx, c.Started, c.DiskPath)
	if err != nil {
		// Partial snapshots are still worth showing.
		call.Log.Warn().Err(err).Msg("host stats incomplete")
	}
	_, _ = call.Reply(fmt.Sprintf("🤖 *Bot Stats*\n\n"+
		"⏱ Uptime: `%s`\n"+
		"🖥 CPU: `%.1f%%`\n"+
		"🧠 RAM: `%.1f%%`\n"+
		"💾 Disk: `%.1f%%`\n"+
		"📦 Process RSS: `%s`",
		sysutil.FormatUptime(hs.Uptime), hs.CPUPercent, hs.MemPercent, hs.DiskPercent, sysutil.FormatBytes(hs.ProcessRSS)))
	return OutcomeOK
}

func (c *commands) ping(_ context.Context, call *Call) string {
	start := time.Now()
	sent, err := call.Reply("🏓 Pinging...")
	if err != nil {
		return OutcomeError
	}
	rtt := time.Since(start)
	call.Edit(sent, fmt.Sprintf("🏓 *Pong!* `%dms`\n⏱ Uptime: `%s`",
		rtt.Milliseconds(), sysutil.FormatUptime(time.Since(c.Started))), false)
	return OutcomeOK
}

func (c *commands) reaction(a nekos.Action) HandlerFunc {
	return func(ctx context.Context, call *Call) string {
		msg := call.Msg
		r, err := c.Reactions.Random(ctx, a.Name)
		if err != nil {
			call.Log.Warn().Err(err).Str("action", a.Name).Msg("reaction fetch failed")
			_, _ = call.Reply("Couldn't fetch a GIF right now. Try again later!")
			return OutcomeError
		}

		anime := r.Anime
		if anime == "" {
			anime = "Unknown"
		}
		sender := md(msg.From.FirstName)
		var caption string
		if t := msg.ReplyToMessage; t != nil && t.From != nil {
			caption = fmt.Sprintf("%s *%s* %s *%s*!\n_From: %s_", a.Emoji, sender, a.Verb, md(t.From.FirstName), md(anime))
		} else {
			caption = fmt.Sprintf("%s *%s* wants to %s someone!\n_From: %s_", a.Emoji, sender, a.Name, md(anime))
		}

		anim := tgbotapi.NewAnimation(msg.Chat.ID, tgbotapi.FileURL(r.URL))
		anim.Caption = caption
		anim.ParseMode = tgbotapi.ModeMarkdown
		anim.ReplyToMessageID = msg.MessageID
		if _, err := call.Bot.Send(anim); err != nil {
			call.Log.Error().Err(err).Str("action", a.Name).Msg("send animation failed")
			return OutcomeError
		}
		return OutcomeOK
	}
}

func (c *commands) quote(ctx context.Context, call *Call) string {
	q, err := c.Quotes.Random(ctx)
	if err != nil {
		call.Log.Warn().Err(err).Msg("quote fetch failed")
		_, _ = call.Reply("Couldn't fetch a quote right now. Try again later!")
		return OutcomeError
	}
	_, _ = call.Reply(fmt.Sprintf("💬 *\"%s\"*\n\n- *%s*\n📺 _%s_", md(q.Content), md(q.Character), md(q.Anime)))
	return OutcomeOK
}
