package router

import (
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-midea/moments/internal/clock"
	"github.com/anonto42/nano-midea/moments/internal/engagement"
	"github.com/anonto42/nano-midea/moments/internal/handlers"
	"github.com/anonto42/nano-midea/moments/internal/middleware"
	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/anonto42/nano-midea/moments/internal/realtime"
	"github.com/anonto42/nano-midea/moments/internal/reply"
	"github.com/anonto42/nano-midea/moments/internal/repositories"
	"github.com/anonto42/nano-midea/moments/internal/stories"
	"github.com/anonto42/nano-midea/moments/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Services are the long-lived pieces main starts and stops around the server
type Services struct {
	Stories    repositories.StoryRepository
	Index      *stories.Store
	Dispatcher *engagement.Dispatcher
	Registry   *realtime.Registry
}

// SetupRoutes configures all application routes and injects dependencies.
// firebaseAuthClient may be nil, which disables Firebase sign-in.
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *config.DB, firebaseAuthClient *auth.Client, log *logrus.Logger) (*Services, error) {
	if err := db.Postgres.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Notification{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("PostgreSQL auto-migrations completed")

	e.GET("/health", handlers.HealthCheck)

	// Each component tags its own entries.
	base := logrus.NewEntry(log)

	// --- Repositories ---
	mongoDB := db.Mongo.Database(cfg.MongoDatabase)
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	storyRepo := repositories.NewStoryRepository(mongoDB)
	conversationRepo := repositories.NewConversationRepository(mongoDB)

	var followRepo repositories.FollowRepository = repositories.NewPostgresFollowRepository(db.Postgres)
	if db.Redis != nil {
		followRepo = repositories.NewCachedFollowRepository(followRepo, db.Redis, repositories.DefaultFollowSetTTL, base)
		log.Info("follow sets cached in Redis")
	}

	// --- Story engine ---
	index := stories.NewStore(storyRepo, followRepo, base)
	tracker := engagement.NewTracker(storyRepo, index)
	replies := reply.NewChannel(conversationRepo, notificationRepo, base)
	dispatcher := engagement.NewDispatcher(tracker, replies, cfg.WriteTimeout, base)
	registry := realtime.NewRegistry()

	// --- Unprotected routes ---
	if firebaseAuthClient != nil {
		authGroup := e.Group("/api/v1/auth")
		handlers.NewAuthHandler(userRepo, firebaseAuthClient, cfg.JWTSecret).RegisterAuthRoutes(authGroup)
		log.Info("auth routes configured")
	}

	// --- Protected routes ---
	api := e.Group("/api/v1")
	authMiddleware := middleware.JWTAuthMiddleware(cfg.JWTSecret)
	if firebaseAuthClient != nil {
		authMiddleware = middleware.EitherAuth(authMiddleware, middleware.FirebaseAuthMiddleware(firebaseAuthClient))
	}
	api.Use(authMiddleware)

	handlers.NewUserHandler(userRepo).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(followRepo).RegisterFollowRoutes(api)

	handlers.NewStorySessionHandler(index, dispatcher, registry, cfg.StoryTickPeriod, clock.NewTicker, base).
		RegisterStorySessionRoutes(api)
	handlers.NewStoryHandler(storyRepo, userRepo, index, tracker, replies).RegisterStoryRoutes(api)
	handlers.NewPlaybackHandler(registry, cfg.VisibilityWindow, clock.NewTicker, base).
		RegisterPlaybackRoutes(api)
	handlers.NewConversationHandler(conversationRepo).RegisterConversationRoutes(api)
	handlers.NewNotificationHandler(notificationRepo, userRepo).RegisterNotificationRoutes(api)

	log.Info("all routes configured")

	return &Services{
		Stories:    storyRepo,
		Index:      index,
		Dispatcher: dispatcher,
		Registry:   registry,
	}, nil
}
