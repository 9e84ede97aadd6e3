package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"Melodex/cache"
	"Melodex/config"
	"Melodex/core/auth"
	"Melodex/core/library"
	"Melodex/logger"
	"Melodex/repository"
	"Melodex/storage"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	folderRepo repository.FolderRepository
	trackRepo  repository.TrackRepository
	userRepo   repository.UserRepository
	controller *library.Controller
	stats      *cache.LibraryStatsCache
	covers     *storage.CoverStore
	issuer     *auth.TokenIssuer
	progress   *ProgressHub
	cfg        *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	folderRepo repository.FolderRepository,
	trackRepo repository.TrackRepository,
	userRepo repository.UserRepository,
	controller *library.Controller,
	stats *cache.LibraryStatsCache,
	covers *storage.CoverStore,
	issuer *auth.TokenIssuer,
	progress *ProgressHub,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		folderRepo: folderRepo,
		trackRepo:  trackRepo,
		userRepo:   userRepo,
		controller: controller,
		stats:      stats,
		covers:     covers,
		issuer:     issuer,
		progress:   progress,
		cfg:        cfg,
	}
}

type contextKey string

const (
	ctxUserID   contextKey = "userID"
	ctxUsername contextKey = "username"
)

// AuthMiddleware is a middleware function that checks for a valid JWT token.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := h.issuer.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxUsername, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(ctxUserID).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
