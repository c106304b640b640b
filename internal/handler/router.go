package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/handler/game"
	"github.com/zhouzirui/z-mafia/backend/internal/handler/realtime"
	"github.com/zhouzirui/z-mafia/backend/internal/logging"
	middlewarePkg "github.com/zhouzirui/z-mafia/backend/internal/middleware"
	"github.com/zhouzirui/z-mafia/backend/internal/model/profile"
	"github.com/zhouzirui/z-mafia/backend/pkg/utils"
)

// Deps 汇总路由需要的服务。
type Deps struct {
	Games          game.Service
	Profiles       profile.Store
	Hub            *realtime.Hub
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	gameHandler := game.New(deps.Games, deps.Profiles, logger)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// Register game routes
		gameHandler.RegisterRoutes(api)

		// Realtime delivery of game events
		if deps.Hub != nil {
			deps.Hub.RegisterRoutes(api)
		}
	})

	return r
}
