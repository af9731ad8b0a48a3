package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// md escapes user-supplied text for legacy Markdown.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// reply sends text as a Markdown reply to msg. When Telegram rejects the
// markup it retries once as plain text.
func reply(bot BotAPI, lg *zerolog.Logger, msg *tgbotapi.Message, text string, preview bool) (tgbotapi.Message, error) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	out.ReplyToMessageID = msg.MessageID
	out.DisableWebPagePreview = !preview

	sent, err := bot.Send(out)
	if err == nil {
		return sent, nil
	}
	lg.Warn().Err(err).Msg("markdown reply rejected, retrying as plain text")
	out.ParseMode = ""
	sent, err = bot.Send(out)
	if err != nil {
		lg.Error().Err(err).Msg("reply failed")
	}
	return sent, err
}

// edit replaces the text of a previously sent message. If the edit fails the
// text is sent as a fresh reply instead.
func edit(bot BotAPI, lg *zerolog.Logger, msg *tgbotapi.Message, sent tgbotapi.Message, text string, preview bool) {
	if sent.MessageID == 0 {
		_, _ = reply(bot, lg, msg, text, preview)
		return
	}
	e := tgbotapi.NewEditMessageText(msg.Chat.ID, sent.MessageID, text)
	e.ParseMode = tgbotapi.ModeMarkdown
	e.DisableWebPagePreview = !preview
	if _, err := bot.Send(e); err != nil {
		lg.Warn().Err(err).Int("message_id", sent.MessageID).Msg("edit failed, sending new message")
		_, _ = reply(bot, lg, msg, text, preview)
	}
}
