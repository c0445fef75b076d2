package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JoLiu-ai/agentic-chat/internal/knowledge"
)

type documentHandler struct {
	knowledge *knowledge.Store
}

type ingestRequest struct {
	UserID   string `json:"user_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	Content  string `json:"content"`
}

func (h *documentHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.FileName == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "file_name and content are required")
		return
	}

	doc, err := h.knowledge.Ingest(r.Context(), req.UserID, req.FileName, req.FileType, req.Content)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *documentHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	userID := q.Get("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	topK := 0
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid top_k")
			return
		}
		topK = n
	}

	threshold := 0.0
	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			writeError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = f
	}

	results, err := h.knowledge.Search(r.Context(), userID, query, topK, threshold)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	if err := h.knowledge.Delete(r.Context(), userID, docID); err != nil {
		writeErrx(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *documentHandler) stats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	stats, err := h.knowledge.UserStats(r.Context(), userID)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
