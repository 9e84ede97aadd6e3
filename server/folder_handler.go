package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"Melodex/logger"
	"Melodex/model"
)

type addFolderRequest struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	AccessToken string `json:"accessToken"`
}

// ListFoldersHandler 返回所有受监控的文件夹，曲目数优先走缓存
func (h *APIHandler) ListFoldersHandler(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folderRepo.ListAll(r.Context())
	if err != nil {
		logger.Error("failed to list folders", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list folders")
		return
	}

	for _, folder := range folders {
		if count, ok := h.stats.TrackCount(r.Context(), folder.ID); ok {
			folder.TrackCount = count
			continue
		}
		// 缓存未命中时直接查库，失败则退回冗余计数
		count, err := h.trackRepo.CountByFolder(r.Context(), folder.ID)
		if err != nil {
			logger.Warn("live track count failed, using stored count",
				logger.Int64("folderId", folder.ID),
				logger.ErrorField(err),
			)
			continue
		}
		folder.TrackCount = count
		h.stats.SetTrackCount(r.Context(), folder.ID, count)
	}
	writeJSON(w, http.StatusOK, folders)
}

// AddFolderHandler 登记一个新的受监控文件夹
func (h *APIHandler) AddFolderHandler(w http.ResponseWriter, r *http.Request) {
	var req addFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Path = filepath.Clean(strings.TrimSpace(req.Path))
	if req.Path == "" || req.Path == "." {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if req.Name == "" {
		req.Name = filepath.Base(req.Path)
	}

	existing, err := h.folderRepo.GetByPath(r.Context(), req.Path)
	if err != nil {
		logger.Error("failed to check folder path", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to add folder")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "folder is already watched")
		return
	}

	folder := &model.Folder{Path: req.Path, Name: req.Name, AccessToken: req.AccessToken}
	if _, err := h.folderRepo.CreateFolder(r.Context(), folder); err != nil {
		logger.Error("failed to create folder", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to add folder")
		return
	}

	logger.Info("watched folder added",
		logger.Int64("folderId", folder.ID),
		logger.String("path", folder.Path),
	)
	writeJSON(w, http.StatusCreated, folder)
}

// RemoveFolderHandler 移除文件夹并级联删除其曲目
func (h *APIHandler) RemoveFolderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid folder id")
		return
	}

	folder, err := h.folderRepo.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("failed to load folder", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to remove folder")
		return
	}
	if folder == nil {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}

	if err := h.folderRepo.DeleteFolder(r.Context(), id); err != nil {
		logger.Error("failed to delete folder", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to remove folder")
		return
	}
	h.stats.InvalidateStats(r.Context())

	logger.Info("watched folder removed",
		logger.Int64("folderId", id),
		logger.String("path", folder.Path),
	)
	w.WriteHeader(http.StatusNoContent)
}
