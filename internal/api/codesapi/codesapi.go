// Package codesapi — тонкий JSON-слой над сервисом трек-кодов.
package codesapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/Trackfy/internal/models"
	"github.com/BearBump/Trackfy/internal/services/codes"
	"github.com/BearBump/Trackfy/internal/services/sweeper"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Service interface {
	ListCodes(ctx context.Context) []models.TrackingCode
	ListGenerations(ctx context.Context) []models.Generation
	RecentCodes(ctx context.Context) []models.TrackingCode
	GetByCode(ctx context.Context, code string) (models.TrackingCode, error)
	History(ctx context.Context, code string) ([]models.Status, error)
	CreateBatch(ctx context.Context, cities []string) (models.Generation, error)
	DeleteCode(ctx context.Context, id string) (models.TrackingCode, error)
	DeleteCodes(ctx context.Context, ids []string) ([]models.TrackingCode, error)
	Stats(ctx context.Context) models.StatsResult
	Cleanup(ctx context.Context) (models.CleanupResult, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type CodesAPI struct {
	svc     Service
	sweeper *sweeper.Sweeper

	rl              RateLimiter
	createPerMinute int64
}

func New(svc Service, sw *sweeper.Sweeper) *CodesAPI {
	return &CodesAPI{svc: svc, sweeper: sw}
}

// WithRateLimiter ограничивает частоту создания партий (запросов в минуту).
func (a *CodesAPI) WithRateLimiter(rl RateLimiter, perMinute int64) *CodesAPI {
	a.rl = rl
	a.createPerMinute = perMinute
	return a
}

func (a *CodesAPI) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)
		r.Get("/stats", a.stats)

		r.Get("/codes", a.listCodes)
		r.Post("/codes", a.createCodes)
		r.Delete("/codes", a.deleteCodes)
		r.Get("/codes/recent", a.recentCodes)
		r.Get("/codes/{code}", a.getCode)
		r.Get("/codes/{code}/history", a.history)
		r.Delete("/codes/{id}", a.deleteCode)

		r.Get("/generations", a.listGenerations)

		r.Post("/cleanup", a.cleanup)
		r.Get("/sweeper/stats", a.sweeperStats)
		r.Post("/sweeper/trigger", a.sweeperTrigger)
	})
}

func (a *CodesAPI) listCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"codes": a.svc.ListCodes(r.Context())})
}

func (a *CodesAPI) listGenerations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"generations": a.svc.ListGenerations(r.Context())})
}

func (a *CodesAPI) recentCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"codes": a.svc.RecentCodes(r.Context())})
}

func (a *CodesAPI) getCode(w http.ResponseWriter, r *http.Request) {
	c, err := a.svc.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err, "Tracking code not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *CodesAPI) history(w http.ResponseWriter, r *http.Request) {
	h, err := a.svc.History(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err, "Tracking code not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": h})
}

type createRequest struct {
	Cities []string `json:"cities"`
}

func (a *CodesAPI) createCodes(w http.ResponseWriter, r *http.Request) {
	if a.rl != nil && a.createPerMinute > 0 {
		key := fmt.Sprintf("rl:create:%s", time.Now().UTC().Format("200601021504"))
		allowed, n, err := a.rl.Allow(r.Context(), key, a.createPerMinute, 70*time.Second)
		if err != nil {
			// Редис недоступен — лимит не повод ронять создание.
			slog.Warn("create rate limit check", "error", err.Error())
		} else if !allowed {
			slog.Warn("create rate limit exceeded", "count", n)
			writeError(w, http.StatusTooManyRequests, "Too many create requests, slow down")
			return
		}
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cities array is required and must not be empty")
		return
	}

	gen, err := a.svc.CreateBatch(r.Context(), req.Cities)
	if err != nil {
		writeServiceError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    fmt.Sprintf("%d código(s) gerado(s) com sucesso!", gen.TotalCodes),
		"generation": gen,
	})
}

func (a *CodesAPI) deleteCode(w http.ResponseWriter, r *http.Request) {
	deleted, err := a.svc.DeleteCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Código não encontrado")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     fmt.Sprintf("Código %s deletado com sucesso!", deleted.Code),
		"deletedCode": deleted,
	})
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

func (a *CodesAPI) deleteCodes(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Array de IDs é obrigatório")
		return
	}

	deleted, err := a.svc.DeleteCodes(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, err, "Nenhum código encontrado para deletar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("%d código(s) deletado(s) com sucesso!", len(deleted)),
		"deletedCodes": deleted,
		"deletedCount": len(deleted),
	})
}

func (a *CodesAPI) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Stats(r.Context()))
}

func (a *CodesAPI) cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.Cleanup(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Erro durante limpeza")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":              "Limpeza executada com sucesso",
		"removedCodes":         res.RemovedCodes,
		"removedGenerations":   res.RemovedGenerations,
		"remainingCodes":       res.RemainingCodes,
		"remainingGenerations": res.RemainingGenerations,
	})
}

func (a *CodesAPI) sweeperStats(w http.ResponseWriter, r *http.Request) {
	if a.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper not wired")
		return
	}
	writeJSON(w, http.StatusOK, a.sweeper.Stats())
}

func (a *CodesAPI) sweeperTrigger(w http.ResponseWriter, r *http.Request) {
	if a.sweeper == nil {
		writeError(w, http.StatusServiceUnavailable, "sweeper not wired")
		return
	}
	a.sweeper.Trigger()
	writeJSON(w, http.StatusOK, map[string]any{"triggered": true})
}

func (a *CodesAPI) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
	})
}

// writeServiceError транслирует таксономию ошибок сервиса в HTTP-статусы:
// невалидный вход — 400, отсутствие — 404, остальное (стор) — 500.
func writeServiceError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, codes.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, codes.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = err.Error()
		}
		writeError(w, http.StatusNotFound, notFoundMsg)
	default:
		slog.Error("api request failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
