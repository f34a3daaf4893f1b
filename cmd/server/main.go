package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"campus-chat/config"
	"campus-chat/handlers"
	"campus-chat/repository"
	"campus-chat/services"
	"campus-chat/ws"
)

func loggingMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	log.Info("starting campus-chat server", "port", cfg.Port, "db", cfg.DBPath)

	// --- storage ---
	db, err := repository.Open(cfg.DBPath)
	if err != nil {
		log.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	messageRepo := repository.NewSQLiteMessageRepo(db)
	profileRepo := repository.NewSQLiteProfileRepo(db)

	// --- websocket hub ---
	hub := ws.NewHub(log)
	go hub.Run()

	// --- services ---
	authSvc := services.NewAuthService(profileRepo, &cfg)
	msgSvc := services.NewMessageService(messageRepo, profileRepo, hub, &cfg, log)

	// --- handlers ---
	authH := handlers.NewAuthHandler(authSvc)
	msgH := handlers.NewMessageHandler(msgSvc, authSvc, log)
	wsH := handlers.NewWSHandler(hub, authSvc, msgSvc, log)

	// --- routes ---
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
	}).Methods("GET")

	r.HandleFunc("/api/register", authH.Register).Methods("POST")
	r.HandleFunc("/api/login", authH.Login).Methods("POST")
	r.HandleFunc("/api/send", msgH.WithAuth(msgH.Send)).Methods("POST")
	r.HandleFunc("/api/history/{counterpartId}", msgH.WithAuth(msgH.History)).Methods("GET")
	r.HandleFunc("/api/conversations", msgH.WithAuth(msgH.Conversations)).Methods("GET")
	r.HandleFunc("/api/mark-read", msgH.WithAuth(msgH.MarkRead)).Methods("POST")
	r.HandleFunc("/ws", wsH.WS).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	handler := c.Handler(loggingMiddleware(log)(r))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", "http://localhost:"+cfg.Port, "ws", "ws://localhost:"+cfg.Port+"/ws?token=<token>")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}

	log.Info("server exited")
}
