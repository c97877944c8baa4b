package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samburke97/bord-business-sub001/internal/auth"
	"github.com/samburke97/bord-business-sub001/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth         *service.AuthService
	OAuth        *service.OAuthService
	Verification *service.VerificationService
	Reset        *service.ResetService
	Profile      *service.ProfileService
	Journey      *service.JourneyService
	Mailer       *service.EmailService

	PublicURL    string
	SessionCodec auth.SessionCodec
	CookieSecure bool
	SessionTTL   time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:          logger,
		isProd:          opts.IsProd,
		dbPing:          opts.DBPing,
		authSvc:         opts.Auth,
		oauthSvc:        opts.OAuth,
		verificationSvc: opts.Verification,
		resetSvc:        opts.Reset,
		profileSvc:      opts.Profile,
		journeySvc:      opts.Journey,
		mailer:          opts.Mailer,
		publicURL:       opts.PublicURL,
		sessionCodec:    opts.SessionCodec,
		cookieSecure:    opts.CookieSecure,
		sessionTTL:      opts.SessionTTL,
		loginLimiter:    newLoginLimiter(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealthz)

	mux.HandleFunc("POST /api/auth/signup", api.handleAuthSetPassword)
	mux.HandleFunc("POST /api/auth/set-password", api.handleAuthSetPassword)
	mux.HandleFunc("POST /api/auth/login", api.handleAuthLogin)
	mux.HandleFunc("POST /api/auth/logout", api.handleAuthLogout)
	mux.HandleFunc("POST /api/auth/google", api.handleAuthGoogle)
	mux.HandleFunc("POST /api/auth/apple", api.handleAuthApple)
	mux.HandleFunc("POST /api/auth/send-verification-code", api.handleSendVerificationCode)
	mux.HandleFunc("POST /api/auth/verify-email", api.handleVerifyEmail)
	mux.HandleFunc("POST /api/auth/forgot-password", api.handleForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", api.handleResetPassword)

	mux.HandleFunc("GET /api/user/me", api.requireAuth(api.handleUserMe))
	mux.HandleFunc("GET /api/user/journey", api.requireAuth(api.handleUserJourney))
	mux.HandleFunc("GET /api/user/profile-status", api.requireAuth(api.handleProfileStatus))
	mux.HandleFunc("GET /api/user/business-status", api.requireAuth(api.handleBusinessStatus))
	mux.HandleFunc("POST /api/user/activate-profile", api.requireAuth(api.handleActivateProfile))
	mux.HandleFunc("POST /api/user/complete-oauth-profile", api.requireAuth(api.handleCompleteOAuthProfile))
	mux.HandleFunc("POST /api/user/business-intention", api.requireAuth(api.handleBusinessIntention))
	mux.HandleFunc("POST /api/user/viewed-success", api.requireAuth(api.handleViewedSuccess))
	mux.HandleFunc("GET /api/user/security-events", api.requireActive(api.handleSecurityEvents))

	mux.HandleFunc("/", handleAPINotFound)

	var h http.Handler = mux
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleAPINotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc         *service.AuthService
	oauthSvc        *service.OAuthService
	verificationSvc *service.VerificationService
	resetSvc        *service.ResetService
	profileSvc      *service.ProfileService
	journeySvc      *service.JourneyService
	mailer          *service.EmailService

	publicURL    string
	sessionCodec auth.SessionCodec
	cookieSecure bool
	sessionTTL   time.Duration

	loginLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
