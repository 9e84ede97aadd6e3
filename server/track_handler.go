package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"Melodex/core/library"
	"Melodex/logger"
	"Melodex/model"
)

// GetTracksHandler 返回曲目列表，可用 ?folderId= 过滤
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	var tracks []*model.Track
	var err error

	if raw := r.URL.Query().Get("folderId"); raw != "" {
		folderID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid folderId")
			return
		}
		tracks, err = h.trackRepo.ListByFolder(r.Context(), folderID)
	} else {
		tracks, err = h.trackRepo.ListAll(r.Context())
	}
	if err != nil {
		logger.Error("failed to list tracks", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list tracks")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

// duplicateGroup is the API shape of one duplicate group.
type duplicateGroup struct {
	GroupID    string         `json:"groupId"`
	Primary    *model.Track   `json:"primary"`
	Duplicates []*model.Track `json:"duplicates"`
}

// GetDuplicateGroupsHandler 返回当前编目中的所有重复组
func (h *APIHandler) GetDuplicateGroupsHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.ListDuplicates(r.Context())
	if err != nil {
		logger.Error("failed to list duplicates", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list duplicates")
		return
	}

	groupsByID := make(map[string]*duplicateGroup)
	var order []string
	for _, track := range tracks {
		if track.DuplicateGroupID == nil {
			continue
		}
		id := *track.DuplicateGroupID
		group, ok := groupsByID[id]
		if !ok {
			group = &duplicateGroup{GroupID: id}
			groupsByID[id] = group
			order = append(order, id)
		}
		if track.IsDuplicate {
			group.Duplicates = append(group.Duplicates, track)
		} else {
			group.Primary = track
		}
	}

	groups := make([]*duplicateGroup, 0, len(order))
	for _, id := range order {
		// A group id with fewer than two members is invalid; the detector
		// clears those, so anything left here is a real group.
		if g := groupsByID[id]; g.Primary != nil && len(g.Duplicates) > 0 {
			groups = append(groups, g)
		}
	}
	writeJSON(w, http.StatusOK, groups)
}

// GetSuggestionsHandler 返回近似重复建议（只读，不写重复标记）
func (h *APIHandler) GetSuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.ListAll(r.Context())
	if err != nil {
		logger.Error("failed to list tracks for suggestions", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to compute suggestions")
		return
	}

	minSim := library.DefaultSuggestionSimilarity
	if raw := r.URL.Query().Get("minSimilarity"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 32); err == nil && v > 0 && v <= 1 {
			minSim = float32(v)
		}
	}
	suggestions := library.NearDuplicates(tracks, minSim)
	if suggestions == nil {
		suggestions = []library.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// GetCoverHandler 从对象存储读取封面图
func (h *APIHandler) GetCoverHandler(w http.ResponseWriter, r *http.Request) {
	if h.covers == nil {
		writeError(w, http.StatusNotFound, "cover store not configured")
		return
	}
	key := mux.Vars(r)["key"]
	data, err := h.covers.GetCover(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "cover not found")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}
