package app

import (
	"context"
	"net/http"

	"doc-collab/pkg/cache"
	"doc-collab/pkg/config"
	"doc-collab/pkg/db"
	"doc-collab/pkg/handlers"
	"doc-collab/pkg/room"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server wires the room manager, document store, and HTTP surface together.
type Server struct {
	router   *mux.Router
	rooms    *room.Manager
	handlers *handlers.Handlers
	docStore *db.PostgresDocumentStore
	mirror   *cache.PresenceMirror
	httpSrv  *http.Server
	logger   *zap.Logger
}

// NewServer builds a server from configuration. The Redis presence mirror is
// only dialed when an address is configured.
func NewServer(cfg config.Config, logger *zap.Logger) (*Server, error) {
	docStore, err := db.NewPostgresDocumentStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var mirror *cache.PresenceMirror
	if cfg.RedisAddr != "" {
		mirror, err = cache.NewPresenceMirror(cfg.RedisAddr, cfg.PresenceTTL)
		if err != nil {
			docStore.Close()
			return nil, err
		}
		logger.Info("presence mirror enabled", zap.String("addr", cfg.RedisAddr))
	}

	rooms := room.NewManager(logger, mirror)
	h := handlers.NewHandlers(rooms, docStore, logger)

	r := mux.NewRouter()

	// WebSocket endpoint for real-time collaboration; rooms are selected by
	// join-document frames, not by the URL.
	r.HandleFunc("/ws", h.HandleWebSocket)

	// REST endpoints over the external document store
	r.HandleFunc("/api/documents", h.CreateDocument).Methods("POST")
	r.HandleFunc("/api/documents", h.ListDocuments).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.GetDocument).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.UpdateDocument).Methods("PUT")
	r.HandleFunc("/api/documents/{id}", h.DeleteDocument).Methods("DELETE")

	// Read-only views into active rooms
	r.HandleFunc("/api/rooms/{roomId}/users", h.GetRoomUsers).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/comments", h.GetRoomComments).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/suggestions", h.GetRoomSuggestions).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/highlights", h.GetRoomHighlights).Methods("GET")

	srv := &Server{
		router:   r,
		rooms:    rooms,
		handlers: h,
		docStore: docStore,
		mirror:   mirror,
		logger:   logger,
	}
	srv.httpSrv = &http.Server{
		Addr: cfg.HTTPAddress,
		// Preflight (OPTIONS) requests are handled at the outer layer, before
		// mux does method-based matching (which would return 405).
		Handler: corsMiddleware(r),
	}
	return srv, nil
}

// Start serves HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting collaboration server", zap.String("addr", s.httpSrv.Addr))
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests and closes external connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	if s.mirror != nil {
		s.mirror.Close()
	}
	if closeErr := s.docStore.Close(); err == nil {
		err = closeErr
	}
	return err
}

// corsMiddleware handles CORS headers and answers preflight requests before
// they reach method-restricted routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			// Reflect the origin for stricter CORS (avoids some browser issues
			// with credentials)
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		// If the browser asked for specific headers, echo them back; otherwise
		// allow the common ones
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		}

		w.Header().Set("Access-Control-Max-Age", "600")
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Headers")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
