package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService   AuthServiceInterface
	SignupService SignupServiceInterface
	SignupSigner  SignupSignerInterface
	AuthConfig    AuthHandlerConfig

	// アバター
	AvatarService AvatarServiceInterface

	// 運用
	HealthChecker   HealthChecker
	MetricsRecorder metrics.AuthRecorder
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// 認証フローのルートにはIPごとのレート制限を、/api配下には
// セッション検証とユーザーごとのレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.SignupSigner, deps.MetricsRecorder, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.SignupService, deps.SignupSigner, deps.MetricsRecorder, deps.AuthConfig)
	homeHandler := NewHomeHandler(deps.AuthService, deps.MetricsRecorder, deps.AuthConfig)
	avatarHandler := NewAvatarHandler(deps.AvatarService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- セッションガード（ランディングページ） ---
	r.Get("/", homeHandler.Home)

	// --- 認証フロー（未認証、IPごとのレート制限） ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Get("/login/google", authHandler.Login)
		r.Get("/auth/google/callback", authHandler.Callback)
		r.Post("/complete-profile", profileHandler.CompleteProfile)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me/avatar", avatarHandler.GetMyAvatar)
		})
	})

	return r
}
