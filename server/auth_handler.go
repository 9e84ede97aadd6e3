package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"Melodex/core/auth"
	"Melodex/logger"
	"Melodex/model"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterHandler 注册新用户
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	existing, err := h.userRepo.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		logger.Error("register: user lookup failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("register: password hashing failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &model.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if _, err := h.userRepo.CreateUser(r.Context(), user); err != nil {
		logger.Error("register: user creation failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := h.issuer.GenerateToken(user.ID, user.Username)
	if err != nil {
		logger.Error("register: token generation failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"token": token, "user": user})
}

// LoginHandler 用户登录
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.userRepo.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		logger.Error("login: user lookup failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := h.issuer.GenerateToken(user.ID, user.Username)
	if err != nil {
		logger.Error("login: token generation failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}
