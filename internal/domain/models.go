// Package domain defines the persistence models for anime title requests and
// the catalog records they are validated against. Request is mapped with GORM
// for the relational store and serialized as JSON for the document store, so
// both backends share one shape.
package domain

// Request is a user's ask for a title to be added to a conversation's
// library. It is created only after the title has been validated against the
// catalog, mutated only by fulfilment, and otherwise deleted outright.
//
// Fields:
//   - ID: auto-increment primary key assigned by the store.
//   - UserID: requester identity (Telegram user id).
//   - ChatID: originating conversation (Telegram chat id).
//   - RawQuery: free text the user submitted.
//   - ValidatedTitle: canonical title from the catalog (English, else romaji).
//   - AnilistID / AnilistURL: catalog identity of the validated title.
//   - Fulfilled: set once an administrator marks the request done.
//   - CreatedAt: seconds since epoch.
//   - Entry: transient catalog details, not persisted.
//
// At most one unfulfilled row may exist per (ChatID, AnilistID); the partial
// unique index ux_anime_requests_pending_title enforces it in SQL.
type Request struct {
	ID             int64  `json:"id"              gorm:"primaryKey;autoIncrement"`
	UserID         int64  `json:"user_id"         gorm:"not null;index:idx_anime_requests_user_chat,priority:1"`
	ChatID         int64  `json:"chat_id"         gorm:"not null;index:idx_anime_requests_user_chat,priority:2;index:idx_anime_requests_chat_pending,priority:1;uniqueIndex:ux_anime_requests_pending_title,priority:1,where:fulfilled = false"`
	RawQuery       string `json:"raw_query"       gorm:"type:text;not null"`
	ValidatedTitle string `json:"validated_title" gorm:"type:text;not null"`
	AnilistID      int64  `json:"anilist_id"      gorm:"not null;uniqueIndex:ux_anime_requests_pending_title,priority:2"`
	AnilistURL     string `json:"anilist_url"     gorm:"type:text"`
	Fulfilled      bool   `json:"fulfilled"       gorm:"not null;default:false;index:idx_anime_requests_chat_pending,priority:2"`
	CreatedAt      int64  `json:"created_at"      gorm:"not null;autoCreateTime"`

	// Entry is the catalog record the request was validated against. It is
	// only populated on the value returned by a submission and never stored.
	Entry *CatalogEntry `json:"-" gorm:"-"`
}

// TableName returns the database table name for Request.
func (Request) TableName() string { return "anime_requests" }

// CatalogEntry is a title record returned by the external catalog lookup.
type CatalogEntry struct {
	ID       int64  `json:"id"`
	Romaji   string `json:"romaji"`
	English  string `json:"english"`
	Native   string `json:"native"`
	Status   string `json:"status"`
	Episodes int    `json:"episodes"` // 0 when unknown
	Score    int    `json:"score"`    // 0 when unknown
	URL      string `json:"url"`
}

// CanonicalTitle prefers the English title and falls back to romaji.
func (e CatalogEntry) CanonicalTitle() string {
	if e.English != "" {
		return e.English
	}
	return e.Romaji
}

// RequestStats aggregates request counts across all conversations.
type RequestStats struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Users   int64 `json:"users"`
	Chats   int64 `json:"chats"`
}

// FSubChannel is a channel users must join before using the bot. The list
// is bot-wide, not per chat.
type FSubChannel struct {
	ChannelID int64 `json:"channel_id" gorm:"primaryKey;autoIncrement:false"`
	AddedBy   int64 `json:"added_by"   gorm:"not null"`
	CreatedAt int64 `json:"created_at" gorm:"not null;autoCreateTime"`
}

// TableName returns the database table name for FSubChannel.
func (FSubChannel) TableName() string { return "fsub_channels" }
