package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Address      string        `yaml:"address"`
		MaxUploadMB  int64         `yaml:"max_upload_mb"`
		ExposeErrors bool          `yaml:"expose_errors"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	LLM struct {
		// Provider selects the language model and embedding backend: "ollama" or "openai".
		Provider string        `yaml:"provider"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"llm"`
	Ollama struct {
		BaseURL      string `yaml:"base_url"`
		DefaultModel string `yaml:"default_model"`
	} `yaml:"ollama"`
	OpenAI struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		EmbeddingModel string `yaml:"embedding_model"`
	} `yaml:"openai"`
	Embeddings struct {
		TextModel string `yaml:"text_model"`
	} `yaml:"embeddings"`
	Processing struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processing"`
	Retrieval struct {
		TopK            int     `yaml:"top_k"`
		ScoreThreshold  float64 `yaml:"score_threshold"`
		MaxContextChars int     `yaml:"max_context_chars"`
	} `yaml:"retrieval"`
	VectorStore struct {
		Type     string `yaml:"type"`
		Postgres struct {
			ConnectionString string `yaml:"connection_string"`
			AutoMigrate      bool   `yaml:"auto_migrate"`
		} `yaml:"postgres"`
		Qdrant struct {
			Host       string `yaml:"host"`
			Port       int    `yaml:"port"`
			APIKey     string `yaml:"api_key"`
			UseTLS     bool   `yaml:"use_tls"`
			Collection string `yaml:"collection"`
		} `yaml:"qdrant"`
	} `yaml:"vector_store"`
	Chat struct {
		Store    string `yaml:"store"`
		MaxTurns int    `yaml:"max_turns"`
		Redis    struct {
			Addr      string `yaml:"addr"`
			Password  string `yaml:"password"`
			DB        int    `yaml:"db"`
			KeyPrefix string `yaml:"key_prefix"`
		} `yaml:"redis"`
	} `yaml:"chat"`
	OCR struct {
		Enabled       bool    `yaml:"enabled"`
		TesseractPath string  `yaml:"tesseract_path"`
		Language      string  `yaml:"language"`
		DPI           float64 `yaml:"dpi"`
	} `yaml:"ocr"`
	Paths struct {
		DocumentsDir string `yaml:"documents_dir"`
		IndexDir     string `yaml:"index_dir"`
	} `yaml:"paths"`
}

// Load loads configuration from path. An empty path tries ./askpdf.yaml and then
// $HOME/.askpdf/config.yaml; when no file exists the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{"askpdf.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".askpdf", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks settings that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.Processing.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("processing.chunk_size must be > 0"))
	}
	if c.Processing.ChunkOverlap < 0 || c.Processing.ChunkOverlap >= c.Processing.ChunkSize {
		errs = append(errs, fmt.Errorf("processing.chunk_overlap must be in [0, chunk_size)"))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be > 0"))
	}
	switch c.VectorStore.Type {
	case "sqlite", "pgvector", "qdrant":
	default:
		errs = append(errs, fmt.Errorf("vector_store.type %q must be one of sqlite, pgvector, qdrant", c.VectorStore.Type))
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q must be ollama or openai", c.LLM.Provider))
	}
	switch c.Chat.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("chat.store %q must be memory or redis", c.Chat.Store))
	}
	if c.Chat.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("chat.max_turns must be >= 0"))
	}
	return errors.Join(errs...)
}

// applyEnv overrides file values with ASKPDF_* environment variables.
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("ASKPDF_ADDRESS", &c.Server.Address)
	setString("ASKPDF_LOG_LEVEL", &c.Log.Level)
	setString("ASKPDF_LLM_PROVIDER", &c.LLM.Provider)
	setString("ASKPDF_OLLAMA_URL", &c.Ollama.BaseURL)
	setString("ASKPDF_OLLAMA_MODEL", &c.Ollama.DefaultModel)
	setString("ASKPDF_EMBEDDING_MODEL", &c.Embeddings.TextModel)
	setString("ASKPDF_OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	setString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	setString("ASKPDF_VECTOR_STORE", &c.VectorStore.Type)
	setString("ASKPDF_DATABASE_URL", &c.VectorStore.Postgres.ConnectionString)
	setString("ASKPDF_QDRANT_HOST", &c.VectorStore.Qdrant.Host)
	setString("ASKPDF_CHAT_STORE", &c.Chat.Store)
	setString("ASKPDF_REDIS_ADDR", &c.Chat.Redis.Addr)
	setString("ASKPDF_DOCUMENTS_DIR", &c.Paths.DocumentsDir)
	setString("ASKPDF_INDEX_DIR", &c.Paths.IndexDir)
	if v := os.Getenv("ASKPDF_QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.VectorStore.Qdrant.Port = port
		}
	}
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":5000"
	cfg.Server.MaxUploadMB = 64
	cfg.Server.ExposeErrors = true
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Timeout = 5 * time.Minute
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.DefaultModel = "llama3.1"
	cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.OpenAI.Model = "gpt-4o-mini"
	cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	cfg.Embeddings.TextModel = "nomic-embed-text"
	cfg.Processing.ChunkSize = 2048
	cfg.Processing.ChunkOverlap = 100
	cfg.Retrieval.TopK = 20
	cfg.Retrieval.ScoreThreshold = 0.1
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.Postgres.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.VectorStore.Postgres.AutoMigrate = true
	cfg.VectorStore.Qdrant.Host = "localhost"
	cfg.VectorStore.Qdrant.Port = 6334
	cfg.VectorStore.Qdrant.Collection = "askpdf_chunks"
	cfg.Chat.Store = "memory"
	cfg.Chat.Redis.Addr = "localhost:6379"
	cfg.Chat.Redis.KeyPrefix = "askpdf:chat:"
	cfg.OCR.Enabled = true
	cfg.OCR.TesseractPath = "tesseract"
	cfg.OCR.Language = "eng"
	cfg.OCR.DPI = 200
	cfg.Paths.DocumentsDir = filepath.Join("data", "pdf")
	cfg.Paths.IndexDir = filepath.Join("data", "db")

	return cfg
}
