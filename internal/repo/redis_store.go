// Package repo implements the data persistence layer for title requests.
// This file provides the document-oriented backend on Redis.
//
// Layout (all keys share a configurable prefix):
//
//	<p>:seq                          INCR counter assigning request ids
//	<p>:doc:<id>                     JSON document of one request
//	<p>:claim:<chat>:<anilist>       id of the pending request holding that title
//	<p>:chat:<chat>:pending          ZSET of pending ids in a chat (score = id)
//	<p>:user:<user>:chat:<chat>      ZSET of all ids of a user in a chat
//	<p>:user:<user>:chat:<chat>:pending  ZSET of pending ids of a user in a chat
//	<p>:all / <p>:pending            ZSETs of every id / every pending id
//	<p>:users / <p>:chats            HASH of live row counts per user / chat
//	<p>:fsub                         ZSET of force-subscribe channel ids (score = time added)
//	<p>:fsub:by                      HASH channel id -> user who added it
//
// The claim key is taken with SETNX before the document is written, so two
// concurrent inserts for the same pending title cannot both succeed. Updates
// to an existing document run under WATCH so concurrent fulfil/delete calls
// never leave the indexes half-applied.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fallenrobot/fallenbot/internal/domain"
)

const (
	// maxWatchRetries bounds optimistic-lock retries on a contended document.
	maxWatchRetries     = 5
	claimReleaseTimeout = 2 * time.Second
)

// decrCounterScript decrements a per-user or per-chat row counter and drops
// the field at zero in one step, so a concurrent HINCRBY from Insert is never
// erased.
const decrCounterScript = `
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
end
return n
`

// RedisStore stores requests as JSON documents in Redis.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix overrides the default key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "fallen:anime_requests"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRedis parses a redis:// URL, connects and pings within timeout.
func OpenRedis(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (s *RedisStore) key(parts ...any) string {
	var b strings.Builder
	b.WriteString(s.prefix)
	for _, p := range parts {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

func (s *RedisStore) docKey(id int64) string { return s.key("doc", id) }

func (s *RedisStore) claimKey(chatID, anilistID int64) string {
	return s.key("claim", chatID, anilistID)
}

func (s *RedisStore) chatPendingKey(chatID int64) string { return s.key("chat", chatID, "pending") }

func (s *RedisStore) userKey(userID, chatID int64) string {
	return s.key("user", userID, "chat", chatID)
}

func (s *RedisStore) userPendingKey(userID, chatID int64) string {
	return s.key("user", userID, "chat", chatID, "pending")
}

// Insert assigns the next id, claims the (chat, title) slot and writes the
// document with its indexes in one MULTI/EXEC. A taken claim yields
// ErrDuplicate.
func (s *RedisStore) Insert(ctx context.Context, req *domain.Request) error {
	id, err := s.rdb.Incr(ctx, s.key("seq")).Result()
	if err != nil {
		return err
	}
	claim := s.claimKey(req.ChatID, req.AnilistID)
	ok, err := s.rdb.SetNX(ctx, claim, id, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}

	doc := *req
	doc.ID = id
	doc.Fulfilled = false
	if doc.CreatedAt == 0 {
		doc.CreatedAt = time.Now().Unix()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		s.releaseClaim(ctx, claim)
		return err
	}

	member := redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.docKey(id), data, 0)
		p.ZAdd(ctx, s.chatPendingKey(doc.ChatID), member)
		p.ZAdd(ctx, s.userKey(doc.UserID, doc.ChatID), member)
		p.ZAdd(ctx, s.userPendingKey(doc.UserID, doc.ChatID), member)
		p.ZAdd(ctx, s.key("all"), member)
		p.ZAdd(ctx, s.key("pending"), member)
		p.HIncrBy(ctx, s.key("users"), strconv.FormatInt(doc.UserID, 10), 1)
		p.HIncrBy(ctx, s.key("chats"), strconv.FormatInt(doc.ChatID, 10), 1)
		return nil
	})
	if err != nil {
		s.releaseClaim(ctx, claim)
		return err
	}
	*req = doc
	return nil
}

// CountPending returns the size of the user's pending index in chatID.
func (s *RedisStore) CountPending(ctx context.Context, userID, chatID int64) (int64, error) {
	return s.rdb.ZCard(ctx, s.userPendingKey(userID, chatID)).Result()
}

// PendingExists reports whether the (chat, title) claim is held.
func (s *RedisStore) PendingExists(ctx context.Context, chatID, anilistID int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.claimKey(chatID, anilistID)).Result()
	return n > 0, err
}

// ListPending returns pending requests of chatID, oldest first.
func (s *RedisStore) ListPending(ctx context.Context, chatID int64) ([]domain.Request, error) {
	ids, err := s.rdb.ZRange(ctx, s.chatPendingKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

// ListByUser returns up to limit requests of userID in chatID, unfulfilled
// first, each group newest first.
func (s *RedisStore) ListByUser(ctx context.Context, userID, chatID int64, limit int) ([]domain.Request, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.userKey(userID, chatID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	// ids are already newest first; a stable sort keeps that within groups.
	sort.SliceStable(out, func(i, j int) bool { return !out[i].Fulfilled && out[j].Fulfilled })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetFulfilled marks request id fulfilled and releases its title claim.
func (s *RedisStore) SetFulfilled(ctx context.Context, id int64) (bool, error) {
	var existed bool
	err := s.watchDoc(ctx, id, func(tx *redis.Tx, doc *domain.Request) error {
		existed = doc != nil
		if doc == nil || doc.Fulfilled {
			return nil
		}
		doc.Fulfilled = true
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		member := strconv.FormatInt(id, 10)
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.docKey(id), data, 0)
			p.ZRem(ctx, s.chatPendingKey(doc.ChatID), member)
			p.ZRem(ctx, s.userPendingKey(doc.UserID, doc.ChatID), member)
			p.ZRem(ctx, s.key("pending"), member)
			p.Del(ctx, s.claimKey(doc.ChatID, doc.AnilistID))
			return nil
		})
		return err
	})
	return existed, err
}

// Delete removes request id and all of its index entries.
func (s *RedisStore) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted *domain.Request
	err := s.watchDoc(ctx, id, func(tx *redis.Tx, doc *domain.Request) error {
		deleted = doc
		if doc == nil {
			return nil
		}
		member := strconv.FormatInt(id, 10)
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, s.docKey(id))
			p.ZRem(ctx, s.chatPendingKey(doc.ChatID), member)
			p.ZRem(ctx, s.userKey(doc.UserID, doc.ChatID), member)
			p.ZRem(ctx, s.userPendingKey(doc.UserID, doc.ChatID), member)
			p.ZRem(ctx, s.key("all"), member)
			p.ZRem(ctx, s.key("pending"), member)
			p.Eval(ctx, decrCounterScript, []string{s.key("users")}, strconv.FormatInt(doc.UserID, 10))
			p.Eval(ctx, decrCounterScript, []string{s.key("chats")}, strconv.FormatInt(doc.ChatID, 10))
			if !doc.Fulfilled {
				p.Del(ctx, s.claimKey(doc.ChatID, doc.AnilistID))
			}
			return nil
		})
		return err
	})
	if err != nil || deleted == nil {
		return false, err
	}
	return true, nil
}

// Stats reads the global indexes.
func (s *RedisStore) Stats(ctx context.Context) (domain.RequestStats, error) {
	var (
		total, pending, users, chats *redis.IntCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		total = p.ZCard(ctx, s.key("all"))
		pending = p.ZCard(ctx, s.key("pending"))
		users = p.HLen(ctx, s.key("users"))
		chats = p.HLen(ctx, s.key("chats"))
		return nil
	})
	if err != nil {
		return domain.RequestStats{}, err
	}
	return domain.RequestStats{
		Total:   total.Val(),
		Pending: pending.Val(),
		Users:   users.Val(),
		Chats:   chats.Val(),
	}, nil
}

// AddChannel adds a force-subscribe channel and reports whether it was new.
func (s *RedisStore) AddChannel(ctx context.Context, channelID, addedBy int64) (bool, error) {
	member := strconv.FormatInt(channelID, 10)
	var added *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		added = p.ZAddNX(ctx, s.key("fsub"), redis.Z{Score: float64(time.Now().UnixNano()), Member: member})
		p.HSetNX(ctx, s.key("fsub", "by"), member, addedBy)
		return nil
	})
	if err != nil {
		return false, err
	}
	return added.Val() > 0, nil
}

// RemoveChannel drops a force-subscribe channel and reports whether it existed.
func (s *RedisStore) RemoveChannel(ctx context.Context, channelID int64) (bool, error) {
	member := strconv.FormatInt(channelID, 10)
	var removed *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.ZRem(ctx, s.key("fsub"), member)
		p.HDel(ctx, s.key("fsub", "by"), member)
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

// ListChannels returns force-subscribe channel ids in the order they were added.
func (s *RedisStore) ListChannels(ctx context.Context) ([]int64, error) {
	members, err := s.rdb.ZRange(ctx, s.key("fsub"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode fsub channel %q: %w", m, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// watchDoc runs fn under WATCH on the document key, passing the decoded
// document (nil when missing). It retries when the key changed underneath.
func (s *RedisStore) watchDoc(ctx context.Context, id int64, fn func(tx *redis.Tx, doc *domain.Request) error) error {
	key := s.docKey(id)
	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return fn(tx, nil)
			}
			if err != nil {
				return err
			}
			var doc domain.Request
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decode request %d: %w", id, err)
			}
			return fn(tx, &doc)
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]domain.Request, error) {
	if len(ids) == 0 {
		return []domain.Request{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key("doc", id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Request, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document: removed concurrently
			continue
		}
		var doc domain.Request
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode request %s: %w", ids[i], err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// releaseClaim undoes a claim taken by a failed Insert. It runs detached
// from ctx so a deadline hitting mid-insert cannot leave an orphaned claim
// that would block the title in that chat.
func (s *RedisStore) releaseClaim(ctx context.Context, claim string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), claimReleaseTimeout)
	defer cancel()
	_ = s.rdb.Del(ctx, claim).Err()
}
