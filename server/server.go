package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"Melodex/cache"
	"Melodex/config"
	"Melodex/core/auth"
	"Melodex/core/library"
	"Melodex/db"
	"Melodex/logger"
	"Melodex/model"
	"Melodex/repository"
	"Melodex/storage"
)

// Start initializes every collaborator and runs the HTTP server until a
// shutdown signal arrives.
func Start() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	// 模型迁移
	if err := db.AutoMigrateModels(&model.User{}, &model.Folder{}, &model.Track{}); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	// Connect to Redis. A failed connection only disables the stats cache.
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, folder stats cache disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
	}

	// MinIO 封面存储，同样允许缺席
	covers, err := storage.NewCoverStore(cfg)
	if err != nil {
		logger.Warn("cover store unavailable, cover art disabled", logger.ErrorField(err))
		covers = nil
	}

	folderRepo := repository.NewMySQLFolderRepository()
	trackRepo := repository.NewMySQLTrackRepository()
	userRepo := repository.NewMySQLUserRepository()
	stats := cache.NewLibraryStatsCache(db.RedisClient, 30*time.Minute)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenLifetime)
	progress := NewProgressHub()

	// 同步管线装配
	fsAccess := library.LocalFileAccess{}
	detector := library.NewChangeDetector(fsAccess, cfg.AudioExtensions)
	var coverStore library.CoverStore
	if covers != nil {
		coverStore = covers
	}
	scanner := library.NewScanner(fsAccess, library.OpenTokens{}, nil, trackRepo, folderRepo, coverStore, cfg.AudioExtensions)
	duplicates := library.NewDuplicateDetector(trackRepo)
	orchestrator := library.NewOrchestrator(detector, scanner, duplicates, cfg.ScanConcurrency, progress.Broadcast)
	controller := library.NewController(folderRepo, orchestrator, stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 文件系统监控：事件去抖后自动触发同步
	if cfg.WatchEnabled {
		watcher := library.NewWatcher(controller, folderRepo, cfg.WatchDebounce)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("library watcher disabled", logger.ErrorField(err))
		} else {
			defer watcher.Stop()
		}
	}

	apiHandler := NewAPIHandler(folderRepo, trackRepo, userRepo, controller, stats, covers, issuer, progress, cfg)

	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)

	// 文件夹管理
	router.HandleFunc("/api/folders", apiHandler.AuthMiddleware(apiHandler.ListFoldersHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/folders", apiHandler.AuthMiddleware(apiHandler.AddFolderHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/folders/{id}", apiHandler.AuthMiddleware(apiHandler.RemoveFolderHandler)).Methods(http.MethodDelete)

	// 曲目与重复组
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/library/duplicates", apiHandler.AuthMiddleware(apiHandler.GetDuplicateGroupsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/library/duplicates/suggestions", apiHandler.AuthMiddleware(apiHandler.GetSuggestionsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/covers/{key:.+}", apiHandler.GetCoverHandler).Methods(http.MethodGet)

	// 同步会话
	router.HandleFunc("/api/library/sync", apiHandler.AuthMiddleware(apiHandler.SyncHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/library/sync/last", apiHandler.AuthMiddleware(apiHandler.LastSyncHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/library/duplicates/scan", apiHandler.AuthMiddleware(apiHandler.DuplicateScanHandler)).Methods(http.MethodPost)
	router.HandleFunc("/ws/sync", apiHandler.SyncProgressWSHandler)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("melodex server listening", logger.String("addr", cfg.ServerAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", logger.ErrorField(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", logger.ErrorField(err))
	}
}
