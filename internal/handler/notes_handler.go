// Package handler はHTTP APIのハンドラー層を提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notescope/internal/geo"
	"github.com/hitoshi/notescope/internal/model"
	"github.com/hitoshi/notescope/internal/notes"
	"github.com/hitoshi/notescope/internal/view"
)

// maxSearchLimit は1回の検索で要求できる結果件数の上限。
const maxSearchLimit = 10000

// SearchServiceInterface はノートハンドラーが必要とする検索セッションのインターフェース。
type SearchServiceInterface interface {
	// Search は検索を実行し、表示対象のノートコレクションと集計を返す。
	Search(ctx context.Context, spec model.FilterSpec, viewport *model.BoundingBox) (*notes.Result, error)
	// PostComment はノートへのフォローアップコメントを投稿し、更新後のノートを返す。
	PostComment(ctx context.Context, noteID int64, text, authToken string) (*model.Note, error)
	// Note はコレクションからノートをIDで取得する。
	Note(id int64) (*model.Note, bool)
	// Cancel は実行中の検索を明示的にキャンセルする。
	Cancel()
	// IsRunning は検索が現在実行中かどうかを返す。
	IsRunning() bool
}

// NotesHandler はノート検索・コメント投稿のHTTPハンドラー。
type NotesHandler struct {
	service SearchServiceInterface
	users   view.UserResolver
}

// NewNotesHandler はNotesHandlerを生成する。
func NewNotesHandler(service SearchServiceInterface, users view.UserResolver) *NotesHandler {
	return &NotesHandler{
		service: service,
		users:   users,
	}
}

// --- リクエスト/レスポンス型 ---

// commentRequest はコメント投稿リクエストのボディ。
type commentRequest struct {
	Text string `json:"text"`
}

// statusResponse は検索状態のレスポンス。
type statusResponse struct {
	Running bool `json:"running"`
}

// Search はノート検索を実行し、指定ビューの表現で結果を返す。
// GET /api/notes/search?view=map|list&bbox=west,south,east,north&q=...&limit=...
//
// 新しい検索の開始は実行中の検索を暗黙にキャンセルする。
// キャンセル・追い越しによる破棄は空の結果として返る。
func (h *NotesHandler) Search(w http.ResponseWriter, r *http.Request) {
	viewName := r.URL.Query().Get("view")
	if viewName == "" {
		viewName = view.NameMap
	}
	renderer, err := view.ForName(viewName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	spec, apiErr := parseFilterSpec(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	viewport, apiErr := parseViewport(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.Search(r.Context(), spec, viewport)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(renderer.Render(result.Notes, result.Summary, h.users))
}

// CancelSearch は実行中の検索を明示的にキャンセルする。
// POST /api/notes/search/cancel
func (h *NotesHandler) CancelSearch(w http.ResponseWriter, r *http.Request) {
	h.service.Cancel()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{Running: h.service.IsRunning()})
}

// SearchStatus は検索が現在実行中かどうかを返す。
// GET /api/notes/search/status
func (h *NotesHandler) SearchStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{Running: h.service.IsRunning()})
}

// GetNote はコレクション中のノートをIDで取得する。
// GET /api/notes/:id
func (h *NotesHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ノートIDは整数で指定してください。",
			Category: "validation",
			Action:   "URLのノートIDを確認してください。",
		})
		return
	}

	note, ok := h.service.Note(noteID)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNoteNotFoundError(noteID))
		return
	}

	renderer := &view.ListRenderer{}
	doc := renderer.Render([]*model.Note{note}, model.Summary{Amount: 1, AverageCreatedDate: note.CreatedAt}, h.users).(*view.ListDocument)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc.Cards[0])
}

// PostComment はノートへのフォローアップコメントを投稿する。
// POST /api/notes/:id/comment
// 認証トークンはAuthorizationヘッダーからリモートプラットフォームへ透過的に転送する。
func (h *NotesHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	noteID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ノートIDは整数で指定してください。",
			Category: "validation",
			Action:   "URLのノートIDを確認してください。",
		})
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "コメント本文が空です。",
			Category: "validation",
			Action:   "textフィールドにコメント本文を指定してください。",
		})
		return
	}

	authToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	note, err := h.service.PostComment(r.Context(), noteID, req.Text, authToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	renderer := &view.ListRenderer{}
	doc := renderer.Render([]*model.Note{note}, model.Summary{Amount: 1, AverageCreatedDate: note.CreatedAt}, h.users).(*view.ListDocument)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc.Cards[0])
}

// --- パラメータのパース ---

// defaultAroundRadiusMeters はaroundパラメータの既定のバッファ半径。
const defaultAroundRadiusMeters = 100.0

// parseViewport はbboxまたはaroundクエリパラメータからビューポートを構築する。
// bboxの形式はwest,south,east,north（度単位）。
// aroundはlat,lonの座標点で、radiusメートル（既定100）の矩形バッファに展開する。
// どちらも未指定の場合はnilを返す。
func parseViewport(r *http.Request) (*model.BoundingBox, *model.APIError) {
	if raw := r.URL.Query().Get("around"); raw != "" {
		return parseAround(r, raw)
	}

	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, model.NewInvalidBBoxError("bboxは west,south,east,north の4値で指定してください")
	}

	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, model.NewInvalidBBoxError("bboxの値が数値ではありません")
		}
		values[i] = v
	}

	box := &model.BoundingBox{West: values[0], South: values[1], East: values[2], North: values[3]}
	if !box.Valid() {
		return nil, model.NewInvalidBBoxError("範囲が不正です")
	}

	return box, nil
}

// parseAround はaroundパラメータの座標点をバッファ矩形に展開する。
func parseAround(r *http.Request, raw string) (*model.BoundingBox, *model.APIError) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return nil, model.NewInvalidBBoxError("aroundは lat,lon の2値で指定してください")
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return nil, model.NewInvalidBBoxError("aroundの値が数値ではありません")
	}

	radius := defaultAroundRadiusMeters
	if rawRadius := r.URL.Query().Get("radius"); rawRadius != "" {
		v, err := strconv.ParseFloat(rawRadius, 64)
		if err != nil || v <= 0 {
			return nil, model.NewInvalidBBoxError("radiusは正の数値で指定してください")
		}
		radius = v
	}

	box := geo.Buffer(model.LatLon{Lat: lat, Lon: lon}, radius)
	return &box, nil
}

// parseFilterSpec はクエリパラメータから検索条件を構築する。
// 未指定のパラメータは既定値を使用する。
func parseFilterSpec(r *http.Request) (model.FilterSpec, *model.APIError) {
	spec := model.DefaultFilterSpec()
	q := r.URL.Query()

	spec.Query = q.Get("q")
	spec.Author = q.Get("author")

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxSearchLimit {
			return spec, model.NewInvalidFilterError("limitは1以上10000以下の整数で指定してください")
		}
		spec.Limit = limit
	}

	if raw := q.Get("status"); raw != "" {
		switch model.StatusFilter(raw) {
		case model.StatusFilterOpen, model.StatusFilterClosed, model.StatusFilterAll:
			spec.Status = model.StatusFilter(raw)
		default:
			return spec, model.NewInvalidFilterError("statusには open, closed, all のいずれかを指定してください")
		}
	}

	if raw := q.Get("anonymous"); raw != "" {
		switch model.AnonymousMode(raw) {
		case model.AnonymousInclude, model.AnonymousHide, model.AnonymousOnly:
			spec.Anonymous = model.AnonymousMode(raw)
		default:
			return spec, model.NewInvalidFilterError("anonymousには include, hide, only のいずれかを指定してください")
		}
	}

	if raw := q.Get("sort"); raw != "" {
		switch model.SortField(raw) {
		case model.SortByCreated, model.SortByUpdated:
			spec.SortBy = model.SortField(raw)
		default:
			return spec, model.NewInvalidFilterError("sortには created, updated のいずれかを指定してください")
		}
	}

	if raw := q.Get("order"); raw != "" {
		switch model.SortOrder(raw) {
		case model.OrderAscending, model.OrderDescending:
			spec.Order = model.SortOrder(raw)
		default:
			return spec, model.NewInvalidFilterError("orderには ascending, descending のいずれかを指定してください")
		}
	}

	if raw := q.Get("from"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			return spec, model.NewInvalidFilterError("fromの日付形式が不正です")
		}
		spec.From = &t
	}

	if raw := q.Get("to"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			return spec, model.NewInvalidFilterError("toの日付形式が不正です")
		}
		spec.To = &t
	}

	if spec.From != nil && spec.To != nil && !spec.From.Before(*spec.To) {
		return spec, model.NewInvalidFilterError("fromはtoより前の日時を指定してください")
	}

	return spec, nil
}

// parseDateParam は日付パラメータをRFC3339または日付のみの形式でパースする。
func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// --- エラーレスポンス ---

// apiErrorResponse はAPIエラーレスポンスの統一フォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidFilter, model.ErrCodeInvalidBBox, model.ErrCodeUnknownView:
		return http.StatusBadRequest
	case model.ErrCodeNoteNotFound, model.ErrCodePrefNotFound:
		return http.StatusNotFound
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed, model.ErrCodeCommentFailed:
		return http.StatusBadGateway
	case model.ErrCodeMalformedNote:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
