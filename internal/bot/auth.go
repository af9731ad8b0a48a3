package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Access is the privilege a command requires.
type Access int

const (
	AccessUser Access = iota
	AccessAdmin
	AccessSudo
)

// Authorizer decides whether a user may run privileged commands in a chat.
type Authorizer struct {
	Bot BotAPI
	// IsSudo reports bot-wide operators (owner and sudo users).
	IsSudo func(userID int64) bool
}

// Sudo reports whether userID is a bot operator.
func (a Authorizer) Sudo(userID int64) bool {
	return a.IsSudo != nil && a.IsSudo(userID)
}

// Admin reports whether userID administers chat. Operators are admins
// everywhere; in private chats nobody else is.
func (a Authorizer) Admin(chat *tgbotapi.Chat, userID int64) (bool, error) {
	if a.Sudo(userID) {
		return true, nil
	}
	if chat == nil || chat.IsPrivate() || a.Bot == nil {
		return false, nil
	}
	m, err := a.Bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chat.ID, UserID: userID},
	})
	if err != nil {
		return false, err
	}
	return m.IsAdministrator() || m.IsCreator(), nil
}

// Allowed checks level for the sender of msg.
func (a Authorizer) Allowed(level Access, msg *tgbotapi.Message) (bool, error) {
	if msg.From == nil {
		return false, nil
	}
	switch level {
	case AccessSudo:
		return a.Sudo(msg.From.ID), nil
	case AccessAdmin:
		return a.Admin(msg.Chat, msg.From.ID)
	default:
		return true, nil
	}
}
