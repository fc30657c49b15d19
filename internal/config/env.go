package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	CorsOrigin string

	// Data layout. Everything lives under DataDir unless overridden.
	DataDir       string
	UploadsDir    string
	ProcessedDir  string
	IndexPath     string

	// Object store backend: "local" (default) or "s3".
	StorageBackend string
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string

	// Embedding backend: "gemini" (default), "openai" or "ollama".
	EmbedBackend string
	EmbedModel   string
	EmbedDim     int
	OllamaHost   string

	// Default provider credentials; a per-request key always wins.
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	DeepSeekAPIKey  string

	// Chunking knobs.
	ChunkSize    int
	ChunkOverlap int

	// Transcription model for audio uploads; empty disables audio ingestion.
	TranscribeModel string
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		CorsOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		DataDir:      dataDir,
		UploadsDir:   getEnv("UPLOADS_DIR", filepath.Join(dataDir, "uploaded_files")),
		ProcessedDir: getEnv("PROCESSED_DIR", filepath.Join(dataDir, "processed_files")),
		IndexPath:    getEnv("INDEX_PATH", filepath.Join(dataDir, "index", "index.gob.gz")),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "ragserve-docs"),

		EmbedBackend: getEnv("EMBED_BACKEND", "gemini"),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:     getEnvInt("EMBED_DIM", 768),
		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),
	}

	if cfg.StorageBackend == "s3" && (cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "") {
		log.Fatal("STORAGE_BACKEND=s3 requires AWS_ACCESS_KEY and AWS_SECRET_KEY")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
