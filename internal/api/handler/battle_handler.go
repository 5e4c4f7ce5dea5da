package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"code_clash/internal/api/middleware"
	"code_clash/internal/app/arena"
	"code_clash/internal/app/service"
	"code_clash/internal/common"
	"code_clash/internal/domain/model"
	"code_clash/internal/platform/config"
	"code_clash/internal/platform/queue"

	"github.com/go-chi/chi/v5"
)

type BattleHandler struct {
	battleService   *service.BattleService
	feedbackService *service.FeedbackService
	feed            *queue.BattleFeed
}

func NewBattleHandler(battleService *service.BattleService, feedbackService *service.FeedbackService, feed *queue.BattleFeed) *BattleHandler {
	return &BattleHandler{battleService: battleService, feedbackService: feedbackService, feed: feed}
}

func (h *BattleHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All battle routes require auth
	r.Get("/", h.listBattles)
	r.Post("/", h.createBattle)
	r.Get("/{battleID}", h.getBattleView)
	r.Post("/{battleID}/join", h.joinBattle)
	r.Post("/{battleID}/solution", h.submitSolution)
	r.Get("/{battleID}/solution", h.getSolution)
	r.Post("/{battleID}/end", h.endBattle)
	r.Get("/{battleID}/arena", h.arenaStream)
	r.Post("/{battleID}/feedback", h.submitFeedback)
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *BattleHandler) listBattles(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	limit, offset := paginationParams(r)

	var battles []model.Battle
	var total int
	var err error
	if r.URL.Query().Get("mine") == "true" {
		battles, total, err = h.battleService.ListMyBattles(r.Context(), userID, limit, offset)
	} else {
		battles, total, err = h.battleService.ListOpenBattles(r.Context(), limit, offset)
	}
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"battles": battles,
		"total":   total,
	})
}

func (h *BattleHandler) createBattle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req service.CreateBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	battle, err := h.battleService.CreateBattle(r.Context(), userID, req, config.AppConfig.MaxBattleDurationMins)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, battle)
}

func (h *BattleHandler) getBattleView(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	view, err := h.battleService.BattleView(r.Context(), chi.URLParam(r, "battleID"), userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view)
}

func (h *BattleHandler) joinBattle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	battle, err := h.battleService.JoinBattle(r.Context(), chi.URLParam(r, "battleID"), userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, battle)
}

func (h *BattleHandler) submitSolution(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	solution, err := h.battleService.SubmitSolution(r.Context(), chi.URLParam(r, "battleID"), userID, req.Code)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, solution)
}

func (h *BattleHandler) getSolution(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	solution, err := h.battleService.GetSolution(r.Context(), chi.URLParam(r, "battleID"), userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, solution)
}

func (h *BattleHandler) endBattle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		WinnerID string `json:"winner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	battle, err := h.battleService.EndBattle(r.Context(), chi.URLParam(r, "battleID"), userID, req.WinnerID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, battle)
}

func (h *BattleHandler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	if err := h.feedbackService.Submit(r.Context(), chi.URLParam(r, "battleID"), userID, req.Text); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondNoContent(w)
}

// arenaStream serves the live arena as server-sent events. One Session per
// connection; closing the connection cancels the session's countdown and
// refresh loops.
func (h *BattleHandler) arenaStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		common.RespondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	battleID := chi.URLParam(r, "battleID")
	ctx := r.Context()

	var snapshots <-chan model.Battle
	if h.feed != nil {
		snapshots = h.feed.Subscribe(ctx, battleID)
	}
	refreshEvery := time.Duration(config.AppConfig.ArenaRefreshSeconds) * time.Second
	session := arena.NewSession(h.battleService, battleID, userID, snapshots, refreshEvery)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	out := make(chan service.BattleView, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Run(ctx, out)
	}()

	writeEvent := func(view service.BattleView) {
		payload, err := json.Marshal(view)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	for {
		select {
		case view := <-out:
			writeEvent(view)
		case err := <-errCh:
			// Flush any final view produced before the session returned.
			for {
				select {
				case view := <-out:
					writeEvent(view)
					continue
				default:
				}
				break
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
				flusher.Flush()
			}
			return
		}
	}
}
