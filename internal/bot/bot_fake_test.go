package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fallenrobot/fallenbot/internal/domain"
	"github.com/fallenrobot/fallenbot/internal/repo"
	"github.com/fallenrobot/fallenbot/internal/services"
)

type fakeBot struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	nextID    int
	admins    map[int64]bool
	memberErr error
	// statuses overrides membership per chat and user.
	statuses     map[[2]int64]string
	chats        map[int64]tgbotapi.Chat
	chatLookups  int
	rejectMarkup bool
	failEdits    bool
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		if b.rejectMarkup && m.ParseMode != "" {
			return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
		}
	case tgbotapi.EditMessageTextConfig:
		if b.failEdits {
			return tgbotapi.Message{}, errors.New("Bad Request: message to edit not found")
		}
	}
	b.nextID++
	return tgbotapi.Message{MessageID: b.nextID, Chat: &tgbotapi.Chat{ID: 1}}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	if b.memberErr != nil {
		return tgbotapi.ChatMember{}, b.memberErr
	}
	status := "member"
	if b.admins[cfg.UserID] {
		status = "administrator"
	}
	b.mu.Lock()
	if st, ok := b.statuses[[2]int64{cfg.ChatID, cfg.UserID}]; ok {
		status = st
	}
	b.mu.Unlock()
	return tgbotapi.ChatMember{
		Status:   status,
		IsMember: status != "left" && status != "kicked",
		User:     &tgbotapi.User{ID: cfg.UserID},
	}, nil
}

func (b *fakeBot) GetChat(cfg tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatLookups++
	ch, ok := b.chats[cfg.ChatID]
	if !ok {
		return tgbotapi.Chat{}, errors.New("Bad Request: chat not found")
	}
	return ch, nil
}

// texts returns the visible text of every sent chattable.
func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.sent))
	for _, c := range b.sent {
		out = append(out, chattableText(c))
	}
	return out
}

func (b *fakeBot) last() string {
	t := b.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func chattableText(c tgbotapi.Chattable) string {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	case tgbotapi.AnimationConfig:
		return m.Caption
	default:
		return fmt.Sprintf("%T", c)
	}
}

const (
	groupID = int64(-1001234)
	userID  = int64(42)
	adminID = int64(7)
	sudoID  = int64(99)
)

func cmdUpdate(text string, chatID, fromID int64) tgbotapi.Update {
	name := strings.SplitN(text, " ", 2)[0]
	chatType := "supergroup"
	if chatID > 0 {
		chatType = "private"
	}
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 500,
			Text:      text,
			Chat:      &tgbotapi.Chat{ID: chatID, Type: chatType, Title: "Anime Club"},
			From:      &tgbotapi.User{ID: fromID, FirstName: "Eren"},
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
		},
	}
}

type stubCatalog struct {
	entries map[string]*domain.CatalogEntry
}

func (c stubCatalog) Lookup(_ context.Context, q string) (*domain.CatalogEntry, error) {
	if e, ok := c.entries[strings.ToLower(strings.TrimSpace(q))]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, errors.New("no matching title")
}

var aot = &domain.CatalogEntry{
	ID:       16498,
	Romaji:   "Shingeki no Kyojin",
	English:  "Attack on Titan",
	Native:   "進撃の巨人",
	Status:   "Finished",
	Episodes: 25,
	Score:    85,
	URL:      "https://anilist.co/anime/16498",
}

var frieren = &domain.CatalogEntry{
	ID:     154587,
	Romaji: "Sousou no Frieren",
	Status: "Releasing",
	URL:    "https://anilist.co/anime/154587",
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) *services.RequestService {
	t.Helper()
	return services.NewRequestService(repo.NewSQLStore(openTestDB(t)), stubCatalog{entries: map[string]*domain.CatalogEntry{
		"attack on titan": aot,
		"snk":             aot,
		"frieren":         frieren,
	}})
}

func newTestRouter(t *testing.T, svc RequestService, reactions Reactions) (*Router, *fakeBot) {
	t.Helper()
	fb := &fakeBot{admins: map[int64]bool{adminID: true}}
	auth := Authorizer{Bot: fb, IsSudo: func(id int64) bool { return id == sudoID }}
	r := NewRouter(fb, auth, nil)
	Register(r, Deps{Requests: svc, Reactions: reactions})
	return r, fb
}
