package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/cpu"
)

// EngineConfig 时间线引擎常量，由 core/engine 使用
type EngineConfig struct {
	BasePPS             float64 // zoom=1 时每秒对应的像素数
	SnapThresholdPx     float64 // 吸附阈值（像素），与缩放无关
	MinClipDuration     float64 // 片段最短时长（秒）
	MinTimelineDuration float64 // 时间线最短时长（秒）
	DefaultDuration     float64 // 新工程的配置时长（秒）
	DefaultZoom         float64
	ZoomStep            float64
	DisplayFPS          int     // 仅用于时间显示
	AutoScrollMarginPx  float64 // 播放头距离可视区域边缘小于该值时建议滚动
	SnappingEnabled     bool
	AutoPreview         bool // 片段变化后自动请求预览
	ThumbnailCount      int
	ThumbnailWidth      int
	WaveformPeaksPerSec int
	PreviewWorkers      int
	PreviewTimeout      time.Duration
}

// Config stores the application configuration.
type Config struct {
	Engine EngineConfig

	FFmpegPath  string
	FFprobePath string
	HTTPAddr    string
	MediaDir    string // 本地媒体目录，监听文件变化以刷新预览
	WatchMedia  bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// MinIO配置
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as time.Duration or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// defaultWorkers 预览生成并发数默认取逻辑 CPU 数的一半
func defaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 2 {
		return 1
	}
	return n / 2
}

// DefaultEngine 返回引擎默认参数
func DefaultEngine() EngineConfig {
	return EngineConfig{
		BasePPS:             50,
		SnapThresholdPx:     5,
		MinClipDuration:     0.1,
		MinTimelineDuration: 30,
		DefaultDuration:     60,
		DefaultZoom:         1,
		ZoomStep:            0.25,
		DisplayFPS:          30,
		AutoScrollMarginPx:  80,
		SnappingEnabled:     true,
		AutoPreview:         true,
		ThumbnailCount:      10,
		ThumbnailWidth:      160,
		WaveformPeaksPerSec: 20,
		PreviewWorkers:      defaultWorkers(),
		PreviewTimeout:      2 * time.Minute,
	}
}

func loadEngine() EngineConfig {
	def := DefaultEngine()
	return EngineConfig{
		BasePPS:             getEnvFloat("BASE_PPS", def.BasePPS),
		SnapThresholdPx:     getEnvFloat("SNAP_THRESHOLD_PX", def.SnapThresholdPx),
		MinClipDuration:     getEnvFloat("MIN_CLIP_DURATION", def.MinClipDuration),
		MinTimelineDuration: getEnvFloat("MIN_TIMELINE_DURATION", def.MinTimelineDuration),
		DefaultDuration:     getEnvFloat("DEFAULT_TIMELINE_DURATION", def.DefaultDuration),
		DefaultZoom:         getEnvFloat("DEFAULT_ZOOM", def.DefaultZoom),
		ZoomStep:            getEnvFloat("ZOOM_STEP", def.ZoomStep),
		DisplayFPS:          getEnvInt("DISPLAY_FPS", def.DisplayFPS),
		AutoScrollMarginPx:  getEnvFloat("AUTOSCROLL_MARGIN_PX", def.AutoScrollMarginPx),
		SnappingEnabled:     getEnvBool("SNAPPING_ENABLED", def.SnappingEnabled),
		AutoPreview:         getEnvBool("AUTO_PREVIEW", def.AutoPreview),
		ThumbnailCount:      getEnvInt("THUMBNAIL_COUNT", def.ThumbnailCount),
		ThumbnailWidth:      getEnvInt("THUMBNAIL_WIDTH", def.ThumbnailWidth),
		WaveformPeaksPerSec: getEnvInt("WAVEFORM_PEAKS_PER_SEC", def.WaveformPeaksPerSec),
		PreviewWorkers:      getEnvInt("PREVIEW_WORKERS", def.PreviewWorkers),
		PreviewTimeout:      getEnvDuration("PREVIEW_TIMEOUT", def.PreviewTimeout),
	}
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")

	return &Config{
		Engine:      loadEngine(),
		FFmpegPath:  ffmpegPath,
		FFprobePath: getEnv("FFPROBE_PATH", strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MediaDir:    getEnv("MEDIA_DIR", "media"),
		WatchMedia:  getEnvBool("WATCH_MEDIA", true),
		DBHost:      getEnv("DB_HOST", "127.0.0.1"),
		DBPort:      getEnv("DB_PORT", "3306"),
		DBUser:      getEnv("DB_USER", "root"),
		DBPassword:  os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:      getEnv("DB_NAME", "cutline"),
		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SnapshotTTL:   getEnvDuration("SNAPSHOT_TTL", 24*time.Hour),
		// MinIO配置
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "cutline-previews"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		// 日志配置
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
