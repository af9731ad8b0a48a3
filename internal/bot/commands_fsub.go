package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fallenrobot/fallenbot/internal/utils"
)

const (
	addFSubUsage = "Usage: `/addfsub <channel_id>`\nExample: `/addfsub -1001234567890`"
	delFSubUsage = "Usage: `/delfsub <channel_id>`\nExample: `/delfsub -1001234567890`"
	gateHeader   = "❗ *You must join the following channels to use this bot:*"
)

// channelInfo looks up a channel, falling back to a bare id when the bot
// cannot see it.
func channelInfo(bot BotAPI, id int64) (tgbotapi.Chat, error) {
	ch, err := bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		return tgbotapi.Chat{ID: id}, err
	}
	return ch, nil
}

func channelTitle(ch tgbotapi.Chat) string {
	if ch.Title != "" {
		return ch.Title
	}
	return fmt.Sprintf("Channel %d", ch.ID)
}

func channelLink(ch tgbotapi.Chat) string {
	if ch.UserName != "" {
		return "https://t.me/" + ch.UserName
	}
	return ch.InviteLink
}

// joined reports whether userID currently belongs to channelID. Lookup
// failures count as not joined.
func joined(bot BotAPI, channelID, userID int64) (bool, error) {
	m, err := bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: channelID, UserID: userID},
	})
	if err != nil {
		return false, err
	}
	if m.HasLeft() || m.WasKicked() {
		return false, nil
	}
	if m.Status == "restricted" && !m.IsMember {
		return false, nil
	}
	return true, nil
}

// subscribed is the router gate. It fails open when the channel list is
// unavailable.
func (c *commands) subscribed(ctx context.Context, call *Call) bool {
	ids, err := c.Channels.Channels(ctx)
	if err != nil {
		call.Log.Warn().Err(err).Msg("fsub list unavailable, skipping gate")
		return true
	}

	var missing []tgbotapi.Chat
	for _, id := range ids {
		ok, err := joined(call.Bot, id, call.Msg.From.ID)
		if err != nil {
			call.Log.Debug().Err(err).Int64("channel_id", id).Msg("membership lookup failed")
		}
		if ok {
			continue
		}
		ch, _ := channelInfo(call.Bot, id)
		missing = append(missing, ch)
	}
	if len(missing) == 0 {
		return true
	}

	var b strings.Builder
	b.WriteString(gateHeader + "\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(missing))
	for _, ch := range missing {
		title := channelTitle(ch)
		fmt.Fprintf(&b, "\n• *%s*", md(title))
		if link := channelLink(ch); link != "" {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Join "+title, link)))
		}
	}

	out := tgbotapi.NewMessage(call.Msg.Chat.ID, b.String())
	out.ParseMode = tgbotapi.ModeMarkdown
	out.ReplyToMessageID = call.Msg.MessageID
	out.DisableWebPagePreview = true
	if len(rows) > 0 {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := call.Bot.Send(out); err != nil {
		call.Log.Error().Err(err).Msg("gate reply failed")
	}
	return false
}

func (c *commands) addFSub(ctx context.Context, call *Call) string {
	if call.Args == "" {
		_, _ = call.Reply(addFSubUsage)
		return OutcomeRejected
	}
	id, ok := utils.ParseChatID(call.Args)
	if !ok {
		_, _ = call.Reply("❌ Invalid channel ID. Must be a number.")
		return OutcomeRejected
	}

	ch, err := channelInfo(call.Bot, id)
	if err != nil {
		call.Log.Warn().Err(err).Int64("channel_id", id).Msg("channel lookup failed")
		_, _ = call.Reply("❌ I can't see that channel. Add me to it first, then try again.")
		return OutcomeRejected
	}
	title := md(channelTitle(ch))
	if c.BotID != 0 {
		m, err := call.Bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: id, UserID: c.BotID},
		})
		if err != nil || !(m.IsAdministrator() || m.IsCreator()) {
			_, _ = call.Reply(fmt.Sprintf("❌ I must be an admin in *%s* to add it as an FSub channel.", title))
			return OutcomeRejected
		}
	}

	added, err := c.Channels.Add(ctx, id, call.Msg.From.ID)
	if err != nil {
		call.Log.Error().Err(err).Int64("channel_id", id).Msg("add fsub failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	if !added {
		_, _ = call.Reply(fmt.Sprintf("⚠️ Channel *%s* is already in the FSub list.", title))
		return OutcomeRejected
	}
	_, _ = call.Reply(fmt.Sprintf("✅ *Force Subscription Added*\n\nChannel: *%s*\nID: `%d`\n\nUsers must now join this channel to use the bot.", title, id))
	return OutcomeOK
}

func (c *commands) delFSub(ctx context.Context, call *Call) string {
	if call.Args == "" {
		_, _ = call.Reply(delFSubUsage)
		return OutcomeRejected
	}
	id, ok := utils.ParseChatID(call.Args)
	if !ok {
		_, _ = call.Reply("❌ Invalid channel ID.")
		return OutcomeRejected
	}
	removed, err := c.Channels.Remove(ctx, id)
	if err != nil {
		call.Log.Error().Err(err).Int64("channel_id", id).Msg("remove fsub failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	if !removed {
		_, _ = call.Reply(fmt.Sprintf("❌ Channel `%d` not found in FSub list.", id))
		return OutcomeRejected
	}
	_, _ = call.Reply(fmt.Sprintf("✅ Removed channel `%d` from Force Subscription list.", id))
	return OutcomeOK
}

func (c *commands) listFSub(ctx context.Context, call *Call) string {
	ids, err := c.Channels.Channels(ctx)
	if err != nil {
		call.Log.Error().Err(err).Msg("list fsub failed")
		_, _ = call.Reply(storeFailure)
		return OutcomeError
	}
	if len(ids) == 0 {
		_, _ = call.Reply("📋 No Force Subscription channels configured.\n\nUse `/addfsub <channel_id>` to add channels.")
		return OutcomeOK
	}

	var b strings.Builder
	b.WriteString("📋 *Force Subscription Channels*\n")
	for i, id := range ids {
		ch, err := channelInfo(call.Bot, id)
		if err != nil {
			call.Log.Debug().Err(err).Int64("channel_id", id).Msg("channel lookup failed")
		}
		fmt.Fprintf(&b, "\n%d. *%s*\n   ID: `%d`", i+1, md(channelTitle(ch)), id)
		if link := channelLink(ch); link != "" {
			fmt.Fprintf(&b, "\n   Link: %s", link)
		}
	}
	_, _ = call.Reply(b.String())
	return OutcomeOK
}
