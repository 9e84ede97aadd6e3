package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"Melodex/core/library"
	"Melodex/logger"
)

type syncRequest struct {
	FolderIDs []int64 `json:"folderIds"` // empty means every watched folder
}

// SyncHandler 触发一次同步会话并返回会话摘要
func (h *APIHandler) SyncHandler(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	summary, err := h.controller.Sync(r.Context(), req.FolderIDs)
	if errors.Is(err, library.ErrSyncInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		logger.Error("sync session failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DuplicateScanHandler 按用户显式要求只执行重复检测
func (h *APIHandler) DuplicateScanHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.controller.FindDuplicates(r.Context())
	if errors.Is(err, library.ErrSyncInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		logger.Error("duplicate scan failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "duplicate scan failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// LastSyncHandler 返回最近一次同步会话的摘要
func (h *APIHandler) LastSyncHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.LastSummary(r.Context())
	if err != nil {
		logger.Warn("failed to read last sync summary", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to read last sync summary")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "no sync has run yet")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
