package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/notescope/internal/osmapi"
)

// ActivityProvider はアクティビティハンドラーが必要とするフィード監視のインターフェース。
type ActivityProvider interface {
	// Recent は直近のノートアクティビティエントリを返す。
	Recent() []osmapi.ActivityEntry
}

// ActivityHandler はノートアクティビティフィードのHTTPハンドラー。
type ActivityHandler struct {
	provider ActivityProvider
}

// NewActivityHandler はActivityHandlerを生成する。
func NewActivityHandler(provider ActivityProvider) *ActivityHandler {
	return &ActivityHandler{provider: provider}
}

// activityEntryResponse はアクティビティ1件のレスポンス。
type activityEntryResponse struct {
	NoteID    int64      `json:"note_id"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Published *time.Time `json:"published,omitempty"`
}

// activityResponse はアクティビティ一覧のレスポンス。
type activityResponse struct {
	Entries []activityEntryResponse `json:"entries"`
}

// ListActivity は直近のノートアクティビティを返す。
// GET /api/activity
func (h *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	recent := h.provider.Recent()

	entries := make([]activityEntryResponse, 0, len(recent))
	for _, e := range recent {
		entries = append(entries, activityEntryResponse{
			NoteID:    e.NoteID,
			Title:     e.Title,
			Link:      e.Link,
			Published: e.Published,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(activityResponse{Entries: entries})
}
