package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-service/internal/service"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, sessionSvc *service.SessionService, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.RequestLogger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS endpoint; сессию валидирует сам gateway
	r.Get("/ws", wsServer.HandleWS)

	// Жизненный цикл сессий — поверхность для auth-коллаборатора.
	r.Route("/sessions", func(sr chi.Router) {
		sr.Use(middlewareChi.Timeout(10 * time.Second))
		sr.Post("/", h.CreateSession)
		sr.Delete("/{id}", h.DestroySession)
	})

	// Всё остальное требует живой Bearer-сессии.
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.SessionAuth(sessionSvc))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/switch", h.SwitchRoom)
			rm.Get("/{room}/members", h.GetMembers)
		})

		pr.Route("/transactions", func(tr chi.Router) {
			tr.Post("/", h.SubmitTransaction)
			tr.Post("/bulk", h.SubmitTransactionBatch)
			tr.Get("/", h.ListTransactions)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
