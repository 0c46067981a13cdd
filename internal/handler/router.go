package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notescope/internal/middleware"
	"github.com/hitoshi/notescope/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ノート検索・コメント投稿
	SearchService SearchServiceInterface
	UserResolver  view.UserResolver

	// アクティビティフィード
	ActivityProvider ActivityProvider

	// クライアント設定。nilの場合は設定ルートを公開しない
	PrefService PrefServiceInterface

	// Prometheusメトリクスのエンドポイント。nilの場合は公開しない
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeaders → Logging → Recovery
//
// 検索ルートには検索用レート制限、コメント投稿には投稿専用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	notesHandler := NewNotesHandler(deps.SearchService, deps.UserResolver)
	activityHandler := NewActivityHandler(deps.ActivityProvider)

	// ヘルスチェック
	r.Get("/health", healthCheck)

	// メトリクス
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// ノート検索
	r.Route("/api/notes", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			// GET /api/notes/search - 検索実行（検索専用レート制限を追加）
			r.With(deps.RateLimiter.SearchMiddleware()).Get("/", notesHandler.Search)
			r.Post("/cancel", notesHandler.CancelSearch)
			r.Get("/status", notesHandler.SearchStatus)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", notesHandler.GetNote)

			// POST /api/notes/{id}/comment - リモートへの書き込みは投稿専用レート制限を追加
			r.With(deps.RateLimiter.CommentMiddleware()).Post("/comment", notesHandler.PostComment)
		})
	})

	// アクティビティフィード
	r.Get("/api/activity", activityHandler.ListActivity)

	// クライアント設定
	if deps.PrefService != nil {
		prefsHandler := NewPrefsHandler(deps.PrefService)
		r.Route("/api/prefs", func(r chi.Router) {
			r.Get("/", prefsHandler.ListPrefs)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", prefsHandler.GetPref)
				r.Put("/", prefsHandler.SetPref)
				r.Delete("/", prefsHandler.DeletePref)
			})
		})
	}

	return r
}

// healthCheck は稼働確認用のエンドポイント。
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
