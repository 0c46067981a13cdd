// Package osmapi はノートプラットフォームのREST API連携機能を提供する。
// bbox指定のノート取得、全文検索、ユーザー情報の一括取得、
// コメント投稿、ノートRSSフィードの監視を含む。
package osmapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/notescope/internal/model"
)

const (
	// defaultBaseURL はノートAPIの既定のベースURL。
	defaultBaseURL = "https://api.openstreetmap.org"
	// notesPath はビューポート（default系）エンドポイントのパス。
	notesPath = "/api/0.6/notes.json"
	// searchPath は全文検索（search系）エンドポイントのパス。
	searchPath = "/api/0.6/notes/search.json"
	// usersPath はユーザー一括取得エンドポイントのパス。
	usersPath = "/api/0.6/users.json"
	// userAgent は全リクエストに付与するUser-Agentヘッダ。
	userAgent = "Notescope/1.0 Notes Review"
)

// FeatureCollection はノートAPIのGeoJSONレスポンスを表す。
type FeatureCollection struct {
	Type     string        `json:"type"`
	Features []NoteFeature `json:"features"`
}

// NoteFeature はGeoJSONレスポンス中の1ノートを表す。
type NoteFeature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties NoteProperties `json:"properties"`
}

// Geometry はノートの座標を表す。Coordinatesは[経度, 緯度]の順。
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NoteProperties はノートの属性を表す。
type NoteProperties struct {
	ID       int64        `json:"id"`
	Status   string       `json:"status"`
	Comments []RawComment `json:"comments"`
}

// RawComment はAPIレスポンス中の未正規化コメントを表す。
// UserとUIDは匿名コメントの場合に欠落する。
type RawComment struct {
	Date   string `json:"date"`
	UID    *int64 `json:"uid,omitempty"`
	User   string `json:"user,omitempty"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

// Client はノートAPIのクライアント。
// 全アウトバウンドリクエストにレートリミッタを適用する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// requestsPerSecondはアウトバウンドAPIコールのレート上限を指定する。
func NewClient(httpClient *http.Client, logger *slog.Logger, requestsPerSecond float64, burst int) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		baseURL:    defaultBaseURL,
	}
}

// SetBaseURL はAPIのベースURLを差し替える。
// セルフホストのプラットフォームやテストサーバーへの接続に使用する。
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// BuildURL はリクエストディスクリプタから具体的なリクエストURLを構築する。
// default系はbboxのみサーバー側で絞り込み、search系は全文検索・期間・
// 作成者・ソート条件をクエリパラメータとして付与する。
func (c *Client) BuildURL(desc model.RequestDescriptor) (string, error) {
	var base string
	switch desc.Family {
	case model.FamilyDefault:
		base = c.baseURL + notesPath
	case model.FamilySearch:
		base = c.baseURL + searchPath
	default:
		return "", fmt.Errorf("unknown endpoint family: %s", desc.Family)
	}

	reqURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("limit", strconv.Itoa(desc.Spec.Limit))
	q.Set("closed", closedParam(desc.Spec.Status))

	switch desc.Family {
	case model.FamilyDefault:
		if desc.BBox == nil {
			return "", fmt.Errorf("default系リクエストにbboxが指定されていません")
		}
		q.Set("bbox", fmt.Sprintf("%g,%g,%g,%g",
			desc.BBox.West, desc.BBox.South, desc.BBox.East, desc.BBox.North))

	case model.FamilySearch:
		if desc.Spec.Query != "" {
			q.Set("q", desc.Spec.Query)
		}
		if desc.Spec.Author != "" {
			q.Set("display_name", desc.Spec.Author)
		}
		if desc.Spec.From != nil {
			q.Set("from", desc.Spec.From.Format("2006-01-02"))
		}
		if desc.Spec.To != nil {
			q.Set("to", desc.Spec.To.Format("2006-01-02"))
		}
		// ソートはsearch系のみ意味を持つ。default系は順序保証がないため
		// クライアント側でのソート・再フィルタが必要になる
		q.Set("sort", sortParam(desc.Spec.SortBy))
		q.Set("order", orderParam(desc.Spec.Order))
	}

	reqURL.RawQuery = q.Encode()
	return reqURL.String(), nil
}

// FetchNotes はディスクリプタの示す1リクエストを発行し、生のノートフィーチャを返す。
func (c *Client) FetchNotes(ctx context.Context, desc model.RequestDescriptor) ([]NoteFeature, error) {
	reqURL, err := c.BuildURL(desc)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var collection FeatureCollection
	if err := json.Unmarshal(body, &collection); err != nil {
		c.logger.Error("ノートAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("family", string(desc.Family)),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return collection.Features, nil
}

// rawUsersPayload はユーザー一括取得APIのレスポンスを表す。
type rawUsersPayload struct {
	Users []struct {
		User struct {
			ID             int64  `json:"id"`
			DisplayName    string `json:"display_name"`
			AccountCreated string `json:"account_created"`
			Img            *struct {
				Href string `json:"href"`
			} `json:"img,omitempty"`
			Changesets struct {
				Count int `json:"count"`
			} `json:"changesets"`
		} `json:"user"`
	} `json:"users"`
}

// LookupUsers は複数ユーザーのメタデータを一括取得する。
// レスポンスに含まれないID（退会済み等）は結果から単に欠落する。
// 呼び出し元はチャンク分割（UserDirectory参照）を済ませた上で呼び出すこと。
func (c *Client) LookupUsers(ctx context.Context, ids []int64) ([]model.UserRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	reqURL, err := url.Parse(c.baseURL + usersPath)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	idsParam := ""
	for i, id := range ids {
		if i > 0 {
			idsParam += ","
		}
		idsParam += strconv.FormatInt(id, 10)
	}
	q := reqURL.Query()
	q.Set("users", idsParam)
	reqURL.RawQuery = q.Encode()

	body, err := c.get(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	var payload rawUsersPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Error("ユーザーAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	records := make([]model.UserRecord, 0, len(payload.Users))
	for _, u := range payload.Users {
		record := model.UserRecord{
			ID:          u.User.ID,
			DisplayName: u.User.DisplayName,
			Changesets:  u.User.Changesets.Count,
		}
		if created, err := time.Parse(time.RFC3339, u.User.AccountCreated); err == nil {
			record.AccountCreated = created
		}
		if u.User.Img != nil {
			record.AvatarURL = u.User.Img.Href
		}
		records = append(records, record)
	}

	return records, nil
}

// CreateComment はノートへのフォローアップコメントを投稿し、
// 更新後のノートフィーチャを返す。
// authTokenはOAuthベアラートークンをそのまま透過的に転送する。
func (c *Client) CreateComment(ctx context.Context, noteID int64, text, authToken string) (*NoteFeature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL, err := url.Parse(fmt.Sprintf("%s/api/0.6/notes/%d/comment.json", c.baseURL, noteID))
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("text", text)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("コメント投稿リクエストに失敗しました",
			slog.Int64("note_id", noteID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("コメント投稿APIがエラーステータスを返しました",
			slog.Int64("note_id", noteID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewCommentFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var feature NoteFeature
	if err := json.Unmarshal(body, &feature); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &feature, nil
}

// get はレートリミッタを通してGETリクエストを実行し、レスポンスボディを返す。
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ノートAPIの呼び出しに失敗しました",
			slog.String("url", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ノートAPIがエラーステータスを返しました",
			slog.String("url", req.URL.Path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, nil
}

// closedParam はStatusFilterをAPIのclosedパラメータに変換する。
// 0は未解決のみ、-1は経過日数による制限なし（全件）を意味する。
// closedのみの絞り込みはサーバー側では表現できないため、
// VisibilityFilterによるクライアント側フィルタで補完する。
func closedParam(status model.StatusFilter) string {
	if status == model.StatusFilterOpen {
		return "0"
	}
	return "-1"
}

// sortParam はSortFieldをAPIのsortパラメータに変換する。
func sortParam(field model.SortField) string {
	if field == model.SortByUpdated {
		return "updated_at"
	}
	return "created_at"
}

// orderParam はSortOrderをAPIのorderパラメータに変換する。
func orderParam(order model.SortOrder) string {
	if order == model.OrderAscending {
		return "oldest"
	}
	return "newest"
}
