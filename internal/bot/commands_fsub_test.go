package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fallenrobot/fallenbot/internal/repo"
	"github.com/fallenrobot/fallenbot/internal/services"
)

const (
	channelID = int64(-1001)
	botID     = int64(555)
)

var animeChannel = tgbotapi.Chat{ID: channelID, Type: "channel", Title: "Anime Club", UserName: "animeclub"}

func newFSubRouter(t *testing.T, svc RequestService, channels Subscriptions) (*Router, *fakeBot) {
	t.Helper()
	fb := &fakeBot{
		admins:   map[int64]bool{adminID: true},
		statuses: map[[2]int64]string{},
		chats:    map[int64]tgbotapi.Chat{channelID: animeChannel},
	}
	auth := Authorizer{Bot: fb, IsSudo: func(id int64) bool { return id == sudoID }}
	r := NewRouter(fb, auth, nil)
	Register(r, Deps{Requests: svc, Channels: channels, BotID: botID})
	return r, fb
}

func newTestChannels(t *testing.T) *services.SubscriptionService {
	t.Helper()
	return services.NewSubscriptionService(repo.NewSQLStore(openTestDB(t)))
}

func (b *fakeBot) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if m, ok := b.sent[i].(tgbotapi.MessageConfig); ok {
			return m
		}
	}
	t.Fatalf("no message sent")
	return tgbotapi.MessageConfig{}
}

func TestFSubCommands(t *testing.T) {
	channels := newTestChannels(t)
	r, fb := newFSubRouter(t, newTestService(t), channels)
	ctx := context.Background()

	steps := []struct {
		text string
		from int64
		want string
	}{
		{"/addfsub", adminID, addFSubUsage},
		{"/addfsub abc", adminID, "❌ Invalid channel ID. Must be a number."},
		{"/addfsub -100999", adminID, "❌ I can't see that channel"},
		{"/addfsub -1001", adminID, "❌ I must be an admin in *Anime Club*"},
		{"/addfsub -1001", userID, "» Only admins can add FSub channels!"},
		{"/fsublist", userID, "» Only admins can view the FSub list!"},
		{"/delfsub -1001", userID, "» Only admins can remove FSub channels!"},
	}
	for _, s := range steps {
		r.Dispatch(ctx, cmdUpdate(s.text, groupID, s.from))
		if !strings.HasPrefix(fb.last(), s.want) {
			t.Fatalf("%s: reply = %q; want prefix %q", s.text, fb.last(), s.want)
		}
	}
	if ids, _ := channels.Channels(ctx); len(ids) != 0 {
		t.Fatalf("nothing should be stored yet, got %v", ids)
	}

	fb.admins[botID] = true
	r.Dispatch(ctx, cmdUpdate("/addfsub -1001", groupID, adminID))
	want := "✅ *Force Subscription Added*\n\nChannel: *Anime Club*\nID: `-1001`\n\nUsers must now join this channel to use the bot."
	if fb.last() != want {
		t.Fatalf("add reply = %q", fb.last())
	}
	r.Dispatch(ctx, cmdUpdate("/addfsub -1001", groupID, sudoID))
	if fb.last() != "⚠️ Channel *Anime Club* is already in the FSub list." {
		t.Fatalf("duplicate add reply = %q", fb.last())
	}

	r.Dispatch(ctx, cmdUpdate("/fsublist", groupID, adminID))
	list := fb.last()
	for _, part := range []string{"1. *Anime Club*", "ID: `-1001`", "Link: https://t.me/animeclub"} {
		if !strings.Contains(list, part) {
			t.Fatalf("fsublist missing %q:\n%s", part, list)
		}
	}

	r.Dispatch(ctx, cmdUpdate("/delfsub nope", groupID, adminID))
	if fb.last() != "❌ Invalid channel ID." {
		t.Fatalf("invalid delete reply = %q", fb.last())
	}
	r.Dispatch(ctx, cmdUpdate("/delfsub -1001", groupID, adminID))
	if fb.last() != "✅ Removed channel `-1001` from Force Subscription list." {
		t.Fatalf("delete reply = %q", fb.last())
	}
	r.Dispatch(ctx, cmdUpdate("/delfsub -1001", groupID, adminID))
	if fb.last() != "❌ Channel `-1001` not found in FSub list." {
		t.Fatalf("second delete reply = %q", fb.last())
	}
	r.Dispatch(ctx, cmdUpdate("/fsublist", groupID, adminID))
	if !strings.HasPrefix(fb.last(), "📋 No Force Subscription channels configured.") {
		t.Fatalf("empty list reply = %q", fb.last())
	}
}

func TestFSubCommands_PrivateChatNeedsSudo(t *testing.T) {
	r, fb := newFSubRouter(t, newTestService(t), newTestChannels(t))
	fb.admins[botID] = true
	ctx := context.Background()

	r.Dispatch(ctx, cmdUpdate("/addfsub -1001", adminID, adminID))
	if fb.last() != "» Only admins can add FSub channels!" {
		t.Fatalf("group admins have no rights in private chats, got %q", fb.last())
	}
	r.Dispatch(ctx, cmdUpdate("/addfsub -1001", sudoID, sudoID))
	if !strings.HasPrefix(fb.last(), "✅ *Force Subscription Added*") {
		t.Fatalf("sudo add reply = %q", fb.last())
	}
}

func TestGate_BlocksUntilJoined(t *testing.T) {
	svc := newTestService(t)
	channels := newTestChannels(t)
	if _, err := channels.Add(context.Background(), channelID, sudoID); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	r, fb := newFSubRouter(t, svc, channels)
	ctx := context.Background()

	const outsider = int64(43)
	fb.statuses[[2]int64{channelID, outsider}] = "left"

	before := testutil.ToFloat64(botCommands.WithLabelValues("request", OutcomeGated))
	r.Dispatch(ctx, cmdUpdate("/request frieren", groupID, outsider))
	gated := fb.lastMessage(t)
	if !strings.HasPrefix(gated.Text, gateHeader) || !strings.Contains(gated.Text, "*Anime Club*") {
		t.Fatalf("gate reply = %q", gated.Text)
	}
	kb, ok := gated.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("expected one join button, got %#v", gated.ReplyMarkup)
	}
	if btn := kb.InlineKeyboard[0][0]; btn.URL == nil || *btn.URL != "https://t.me/animeclub" {
		t.Fatalf("join button = %+v", btn)
	}
	if got := testutil.ToFloat64(botCommands.WithLabelValues("request", OutcomeGated)); got != before+1 {
		t.Fatalf("gated counter = %v; want %v", got, before+1)
	}
	if mine, _ := svc.ListMine(ctx, outsider, groupID, 10); len(mine) != 0 {
		t.Fatalf("gated user must not create requests, got %d", len(mine))
	}

	r.Dispatch(ctx, cmdUpdate("/help", groupID, outsider))
	if !strings.HasPrefix(fb.last(), "*Anime Request System*") {
		t.Fatalf("/help must bypass the gate, got %q", fb.last())
	}

	fb.statuses[[2]int64{channelID, outsider}] = "member"
	r.Dispatch(ctx, cmdUpdate("/request frieren", groupID, outsider))
	if mine, _ := svc.ListMine(ctx, outsider, groupID, 10); len(mine) != 1 {
		t.Fatalf("joined user should be admitted, got %d requests", len(mine))
	}
}

func TestGate_MembershipStates(t *testing.T) {
	channels := newTestChannels(t)
	if _, err := channels.Add(context.Background(), channelID, sudoID); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name   string
		status string
		lookup error
		from   int64
		gated  bool
	}{
		{name: "member", status: "member", from: userID},
		{name: "creator", status: "creator", from: userID},
		{name: "restricted member", status: "restricted", from: userID},
		{name: "left", status: "left", from: userID, gated: true},
		{name: "kicked", status: "kicked", from: userID, gated: true},
		{name: "lookup error", lookup: errors.New("Bad Request: user not found"), from: userID, gated: true},
		{name: "sudo skips gate", status: "left", from: sudoID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, fb := newFSubRouter(t, newTestService(t), channels)
			if tc.status != "" {
				fb.statuses[[2]int64{channelID, tc.from}] = tc.status
			}
			fb.memberErr = tc.lookup
			r.Dispatch(ctx, cmdUpdate("/myrequests", groupID, tc.from))
			isGated := strings.HasPrefix(fb.last(), gateHeader)
			if isGated != tc.gated {
				t.Fatalf("gated = %v; want %v (reply %q)", isGated, tc.gated, fb.last())
			}
		})
	}
}

func TestGate_RestrictedNonMember(t *testing.T) {
	fb := &fakeBot{}
	ok, err := joined(memberStub{fakeBot: fb, m: tgbotapi.ChatMember{Status: "restricted", IsMember: false}}, channelID, userID)
	if err != nil || ok {
		t.Fatalf("restricted non-member joined = %v, %v", ok, err)
	}
}

type memberStub struct {
	*fakeBot
	m tgbotapi.ChatMember
}

func (s memberStub) GetChatMember(tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return s.m, nil
}

func TestGate_AdminCommandsAndUnlistedChannels(t *testing.T) {
	channels := newTestChannels(t)
	ctx := context.Background()
	if _, err := channels.Add(ctx, -1002, sudoID); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	r, fb := newFSubRouter(t, newTestService(t), channels)
	fb.statuses[[2]int64{-1002, adminID}] = "left"
	fb.statuses[[2]int64{-1002, userID}] = "left"

	r.Dispatch(ctx, cmdUpdate("/requests", groupID, adminID))
	if strings.HasPrefix(fb.last(), gateHeader) {
		t.Fatalf("admin commands must not be gated")
	}

	r.Dispatch(ctx, cmdUpdate("/myrequests", groupID, userID))
	gated := fb.lastMessage(t)
	if !strings.Contains(gated.Text, "*Channel -1002*") {
		t.Fatalf("unknown channel should fall back to its id, got %q", gated.Text)
	}
	if gated.ReplyMarkup != nil {
		t.Fatalf("no link means no button, got %#v", gated.ReplyMarkup)
	}
}

type failingChannels struct{}

func (failingChannels) Add(context.Context, int64, int64) (bool, error) {
	return false, errors.New("store down")
}
func (failingChannels) Remove(context.Context, int64) (bool, error) {
	return false, errors.New("store down")
}
func (failingChannels) Channels(context.Context) ([]int64, error) {
	return nil, errors.New("store down")
}

func TestGate_FailsOpen(t *testing.T) {
	r, fb := newFSubRouter(t, newTestService(t), failingChannels{})
	ctx := context.Background()

	r.Dispatch(ctx, cmdUpdate("/myrequests", groupID, userID))
	if strings.HasPrefix(fb.last(), gateHeader) {
		t.Fatalf("gate must fail open, got %q", fb.last())
	}

	fb.admins[botID] = true
	for _, text := range []string{"/addfsub -1001", "/delfsub -1001", "/fsublist"} {
		r.Dispatch(ctx, cmdUpdate(text, groupID, adminID))
		if fb.last() != storeFailure {
			t.Fatalf("%s: reply = %q", text, fb.last())
		}
	}
}
