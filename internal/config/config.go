package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	Port    string
	GinMode string

	LogLevel  string
	LogFormat string

	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	MaxSessionsPerUser int

	UploadDir         string
	MaxUploadSize     int64
	AllowedExtensions []string

	DeepgramAPIKey         string
	DeepgramModel          string
	DefaultLanguage        string
	DeepgramTimeout        time.Duration
	TranscriptionCacheSize int

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnalysisModel   string
	AnalysisTimeout time.Duration

	MaxMembersPerOrganization int
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "voicecheck"),
		DBPassword: getEnv("DB_PASSWORD", "voicecheck"),
		DBName:     getEnv("DB_NAME", "voicecheck"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		Port:    getEnv("PORT", "8000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		JWTSecret:          getEnv("JWT_SECRET_KEY", "voicecheck-secret-key-change-in-production"),
		AccessTokenTTL:     time.Duration(getEnvInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 60)) * time.Minute,
		RefreshTokenTTL:    time.Duration(getEnvInt("JWT_REFRESH_TOKEN_EXPIRE_DAYS", 30)) * 24 * time.Hour,
		MaxSessionsPerUser: getEnvInt("MAX_SESSIONS_PER_USER", 10),

		UploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSize:     int64(getEnvInt("MAX_UPLOAD_SIZE_MB", 50)) * 1024 * 1024,
		AllowedExtensions: getEnvList("ALLOWED_EXTENSIONS", ".mp3,.wav,.m4a,.ogg,.flac,.mp4,.webm"),

		DeepgramAPIKey:         getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:          getEnv("DEEPGRAM_MODEL", "whisper"),
		DefaultLanguage:        getEnv("DEEPGRAM_LANGUAGE", "ru"),
		DeepgramTimeout:        time.Duration(getEnvInt("DEEPGRAM_TIMEOUT", 300)) * time.Second,
		TranscriptionCacheSize: getEnvInt("TRANSCRIPTION_CACHE_SIZE", 100),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		AnalysisModel:   getEnv("ANALYSIS_MODEL", "gpt-4o"),
		AnalysisTimeout: time.Duration(getEnvInt("LLM_TIMEOUT", 30)) * time.Second,

		MaxMembersPerOrganization: getEnvInt("MAX_MEMBERS_PER_ORGANIZATION", 100),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
