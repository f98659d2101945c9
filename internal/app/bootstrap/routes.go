// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	consentflow "github.com/dalemusser/mentorhub/internal/app/chat/consent"
	chatfeature "github.com/dalemusser/mentorhub/internal/app/features/chat"
	groupsfeature "github.com/dalemusser/mentorhub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/mentorhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/mentorhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/mentorhub/internal/app/features/logout"
	matchesfeature "github.com/dalemusser/mentorhub/internal/app/features/matches"
	organizationsfeature "github.com/dalemusser/mentorhub/internal/app/features/organizations"
	usersfeature "github.com/dalemusser/mentorhub/internal/app/features/users"
	consentstore "github.com/dalemusser/mentorhub/internal/app/store/consent"
	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	matchstore "github.com/dalemusser/mentorhub/internal/app/store/matches"
	messagestore "github.com/dalemusser/mentorhub/internal/app/store/messages"
	notificationstore "github.com/dalemusser/mentorhub/internal/app/store/notifications"
	orgstore "github.com/dalemusser/mentorhub/internal/app/store/organizations"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"github.com/dalemusser/mentorhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. MentorHub mounts a JSON API: auth,
// tenant administration, and the chat surface (REST views plus the
// websocket session endpoint).
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Create the session manager using app config.
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Set up the UserFetcher so LoadSessionUser fetches fresh user data on
	// each request. Role changes and org moves take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	db := deps.MongoDatabase
	users := userstore.New(db, logger)
	orgs := orgstore.New(db)
	groups := groupstore.New(db, logger)
	matches := matchstore.New(db, logger)
	messages := messagestore.New(db, logger)
	requests := consentstore.New(db, logger)
	notifications := notificationstore.New(db)
	workflow := consentflow.New(requests, notifications, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(users, sessionMgr, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// Tenant administration
	orgHandler := organizationsfeature.NewHandler(orgs, membershipSync, logger)
	r.Mount("/organizations", organizationsfeature.Routes(orgHandler, sessionMgr))

	usersHandler := usersfeature.NewHandler(users, membershipSync, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	groupsHandler := groupsfeature.NewHandler(groups, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	matchesHandler := matchesfeature.NewHandler(matches, users, logger)
	r.Mount("/matches", matchesfeature.Routes(matchesHandler, sessionMgr))

	// Messaging
	chatHandler := chatfeature.NewHandler(users, groups, matches, messages, requests, notifications, workflow, logger)
	r.Mount("/chat", chatfeature.Routes(chatHandler, sessionMgr))

	return r, nil
}
