package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notescope/internal/model"
)

// PrefServiceInterface は設定ハンドラーが必要とする設定サービスのインターフェース。
type PrefServiceInterface interface {
	Get(ctx context.Context, clientID, key string) (*model.Preference, error)
	List(ctx context.Context, clientID string) ([]*model.Preference, error)
	Set(ctx context.Context, clientID, key, value string) (*model.Preference, error)
	Delete(ctx context.Context, clientID, key string) error
}

// PrefsHandler はクライアント設定のHTTPハンドラー。
type PrefsHandler struct {
	service PrefServiceInterface
}

// NewPrefsHandler はPrefsHandlerを生成する。
func NewPrefsHandler(service PrefServiceInterface) *PrefsHandler {
	return &PrefsHandler{service: service}
}

// --- リクエスト/レスポンス型 ---

// prefResponse は設定1件のレスポンス。
type prefResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// prefListResponse は設定一覧のレスポンス。
type prefListResponse struct {
	Prefs []prefResponse `json:"prefs"`
}

// setPrefRequest は設定保存リクエストのボディ。
type setPrefRequest struct {
	Value string `json:"value"`
}

// ListPrefs はクライアントの全設定を返す。
// GET /api/prefs
func (h *PrefsHandler) ListPrefs(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDOf(r)

	prefs, err := h.service.List(r.Context(), clientID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := prefListResponse{Prefs: make([]prefResponse, 0, len(prefs))}
	for _, p := range prefs {
		resp.Prefs = append(resp.Prefs, prefResponse{
			Key:       p.Key,
			Value:     p.Value,
			UpdatedAt: p.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPref は設定キー1件の値を返す。
// GET /api/prefs/:key
func (h *PrefsHandler) GetPref(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDOf(r)
	key := chi.URLParam(r, "key")

	pref, err := h.service.Get(r.Context(), clientID, key)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prefResponse{
		Key:       pref.Key,
		Value:     pref.Value,
		UpdatedAt: pref.UpdatedAt,
	})
}

// SetPref は設定キーの値を保存する。既存キーは上書きする。
// PUT /api/prefs/:key
func (h *PrefsHandler) SetPref(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDOf(r)
	key := chi.URLParam(r, "key")

	var req setPrefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	pref, err := h.service.Set(r.Context(), clientID, key, req.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(prefResponse{
		Key:       pref.Key,
		Value:     pref.Value,
		UpdatedAt: pref.UpdatedAt,
	})
}

// DeletePref は設定キーを削除する。
// DELETE /api/prefs/:key
func (h *PrefsHandler) DeletePref(w http.ResponseWriter, r *http.Request) {
	clientID := clientIDOf(r)
	key := chi.URLParam(r, "key")

	if err := h.service.Delete(r.Context(), clientID, key); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// clientIDOf はリクエストからクライアント識別子を取り出す。
// X-Client-IDヘッダーを優先し、なければclient_idクエリパラメータを使う。
func clientIDOf(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("client_id")
}
