package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"Cutline/cache"
	"Cutline/config"
	"Cutline/core/engine"
	"Cutline/core/preview"
	"Cutline/db"
	"Cutline/logger"
	"Cutline/model"
	"Cutline/repository"
	"Cutline/storage"

	"github.com/gorilla/mux"
)

// maxCachedPreview Redis 中单条预览的最大字节数，更大的只写 MinIO
const maxCachedPreview = 4 << 20

// backends 可选的外部依赖，连接失败时对应字段为空
type backends struct {
	store     preview.Store
	snapshots *cache.SnapshotCache
	projects  repository.ProjectRepository
	closers   []func() error
	enabled   []string
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("failed to close backend", logger.ErrorField(err))
		}
	}
}

// connectBackends 依次连接 Redis、MinIO 和 MySQL。任何一个不可用都不影响编辑，
// 只是失去对应的缓存或持久化能力。
func connectBackends(cfg *config.Config) *backends {
	b := &backends{}
	var tiers preview.Tiered

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis 不可用，跳过预览缓存和快照缓存", logger.ErrorField(err))
	} else {
		b.closers = append(b.closers, cache.CloseRedis)
		tiers = append(tiers, cache.NewPreviewCache(cache.RedisClient, 0, maxCachedPreview))
		b.snapshots = cache.NewSnapshotCache(cache.RedisClient, cfg.SnapshotTTL)
		b.enabled = append(b.enabled, "redis")
	}

	if cfg.MinioAccessKey == "" {
		logger.Info("MinIO 未配置，预览不落对象存储")
	} else if client, err := storage.NewMinio(cfg); err != nil {
		logger.Warn("MinIO 不可用", logger.ErrorField(err))
	} else {
		tiers = append(tiers, storage.NewPreviewStore(client, cfg.MinioBucket))
		b.enabled = append(b.enabled, "minio")
	}

	if len(tiers) > 0 {
		b.store = tiers
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Warn("数据库不可用，工程只保存在 Redis", logger.ErrorField(err))
	} else if err := db.AutoMigrateModels(&model.ProjectRecord{}); err != nil {
		logger.Warn("数据库迁移失败", logger.ErrorField(err))
		db.CloseGormDB()
	} else {
		b.closers = append(b.closers, db.CloseGormDB)
		b.projects = repository.NewGormProjectRepository(db.GormDB)
		b.enabled = append(b.enabled, "mysql")
	}
	logger.Info("后端连接完成", logger.Strings("enabled", b.enabled))
	return b
}

// NewEngine 用 ffmpeg 和 WAV 解码器组装引擎
func NewEngine(cfg *config.Config, store preview.Store) *engine.Engine {
	resolve := preview.DirResolver(cfg.MediaDir)
	ff := preview.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, resolve)
	ff.ThumbWidth = cfg.Engine.ThumbnailWidth
	ff.PeaksPerSecond = cfg.Engine.WaveformPeaksPerSec

	waveform := preview.ByExtension{
		Samplers: map[string]preview.WaveformSampler{
			".wav": &preview.WAVSampler{Resolve: resolve, PeaksPerSecond: cfg.Engine.WaveformPeaksPerSec},
		},
		Fallback: ff,
	}
	return engine.New(cfg.Engine, engine.Deps{
		Prober:      ff,
		Thumbnailer: ff,
		Waveform:    waveform,
		Store:       store,
	})
}

// NewRouter 创建路由并挂载 CORS 中间件
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})
	h.RegisterRoutes(router)

	// 中间件只作用于匹配上的路由，预检请求需要一个兜底路由
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

// Start 启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出
func Start(cfg *config.Config) error {
	if err := ensureDirExists(cfg.MediaDir); err != nil {
		return err
	}

	b := connectBackends(cfg)
	defer b.close()

	eng := NewEngine(cfg, b.store)
	defer eng.Close()

	if cfg.WatchMedia {
		watcher, err := preview.NewSourceWatcher(cfg.MediaDir, 500*time.Millisecond, func(ref string) {
			if n := eng.InvalidateSource(ref); n > 0 {
				logger.Info("媒体文件变化，刷新预览", logger.String("source", ref), logger.Int("clips", n))
			}
		})
		if err != nil {
			logger.Warn("failed to watch media directory", logger.String("dir", cfg.MediaDir), logger.ErrorField(err))
		} else {
			defer watcher.Close()
		}
	}

	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Forward(ctx, eng, hub)

	handler := NewAPIHandler(eng, hub, b.projects, b.snapshots)

	// WriteTimeout 需要覆盖预览长轮询
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewRouter(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: maxWaitPreview + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.HTTPAddr),
			logger.String("mediaDir", cfg.MediaDir),
			logger.Int("workers", cfg.Engine.PreviewWorkers))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func ensureDirExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("Creating directory", logger.String("path", path))
		if err := os.MkdirAll(filepath.Clean(path), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check directory %s: %w", path, err)
	}
	return nil
}
