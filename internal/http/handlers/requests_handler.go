// Request HTTP handlers.
//
// Read-only views over the request queue for dashboards and uptime checks:
//   - GET /chats/{chatID}/requests/pending
//   - GET /chats/{chatID}/users/{userID}/requests?limit=N
//   - GET /stats
//
// Mutations stay on the bot, where chat administrators are authorized.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fallenrobot/fallenbot/internal/domain"
	"github.com/fallenrobot/fallenbot/internal/utils"
)

// maxListLimit bounds the limit query parameter.
const maxListLimit = 100

// RequestService is the subset of services.RequestService used over HTTP.
type RequestService interface {
	ListPending(ctx context.Context, chatID int64) ([]domain.Request, error)
	ListMine(ctx context.Context, userID, chatID int64, limit int) ([]domain.Request, error)
	Stats(ctx context.Context) (domain.RequestStats, error)
}

// Handlers groups the request endpoints.
type Handlers struct {
	reqSvc       RequestService
	defaultLimit int
}

// New binds handlers to svc. defaultLimit applies when no ?limit is given.
func New(svc RequestService, defaultLimit int) *Handlers {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Handlers{reqSvc: svc, defaultLimit: defaultLimit}
}

// ListRequestsResponse wraps a request listing.
type ListRequestsResponse struct {
	ChatID   int64            `json:"chat_id"`
	Count    int              `json:"count"`
	Requests []domain.Request `json:"requests"`
}

// ListPending returns every unfulfilled request of a chat, oldest first.
func (h *Handlers) ListPending(c *gin.Context) {
	chatID, valid := utils.ParseChatID(c.Param("chatID"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid chat id")
		return
	}

	reqs, err := h.reqSvc.ListPending(c.Request.Context(), chatID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list requests")
		return
	}
	ok(c, http.StatusOK, listResponse(chatID, reqs))
}

// ListByUser returns a user's requests in a chat, unfulfilled first.
func (h *Handlers) ListByUser(c *gin.Context) {
	chatID, valid := utils.ParseChatID(c.Param("chatID"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid chat id")
		return
	}
	userID, valid := utils.ParseID(c.Param("userID"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}
	limit := utils.ClampLimit(c.Query("limit"), h.defaultLimit, maxListLimit)

	reqs, err := h.reqSvc.ListMine(c.Request.Context(), userID, chatID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list requests")
		return
	}
	ok(c, http.StatusOK, listResponse(chatID, reqs))
}

// Stats returns aggregate request counts.
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.reqSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not compute stats")
		return
	}
	ok(c, http.StatusOK, st)
}

func listResponse(chatID int64, reqs []domain.Request) ListRequestsResponse {
	if reqs == nil {
		reqs = []domain.Request{}
	}
	return ListRequestsResponse{ChatID: chatID, Count: len(reqs), Requests: reqs}
}
