package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"radio-manager/work/types"
)

// Config holds all application configuration for the station manager.
type Config struct {
	BaseURL         string        `json:"baseURL"`         // Base URL for the application (used for API and links)
	ListenAddr      string        `json:"listenAddr"`      // Address the HTTP server binds to
	StationsFile    string        `json:"stationsFile"`    // Path to the station list loaded on startup
	MaxConcurrency  int           `json:"maxConcurrency"`  // Number of parallel probe workers
	CheckTimeout    time.Duration `json:"checkTimeout"`    // Timeout for the streaming GET of a probe
	RenameTemplate  string        `json:"renameTemplate"`  // Default template for batch renames
	UserAgent       string        `json:"userAgent"`       // HTTP User-Agent sent on probes
	CacheEnabled    bool          `json:"cacheEnabled"`    // Whether resolved playlist caching is enabled
	CacheDuration   time.Duration `json:"cacheDuration"`   // Duration before cache entries expire
	Debug           bool          `json:"debug"`           // Enable debug logging
	ObfuscateUrls   bool          `json:"obfuscateUrls"`   // Obfuscate station URLs in logs
	Delete404       bool          `json:"delete404"`       // Remove-inactive: stations that answered with an HTTP error status
	DeleteError     bool          `json:"deleteError"`     // Remove-inactive: stations with server-side errors
	DeleteConnError bool          `json:"deleteConnError"` // Remove-inactive: stations that refused the connection
	DeleteTimeout   bool          `json:"deleteTimeout"`   // Remove-inactive: stations that timed out
}

// ConfigFile is the JSON file shape. Duration fields are strings like "10s"
// and are parsed into time.Duration values on load.
type ConfigFile struct {
	BaseURL         string `json:"baseURL"`
	ListenAddr      string `json:"listenAddr"`
	StationsFile    string `json:"stationsFile"`
	MaxConcurrency  int    `json:"maxConcurrency"`
	CheckTimeout    string `json:"checkTimeout"`
	RenameTemplate  string `json:"renameTemplate"`
	UserAgent       string `json:"userAgent"`
	CacheEnabled    bool   `json:"cacheEnabled"`
	CacheDuration   string `json:"cacheDuration"`
	Debug           bool   `json:"debug"`
	ObfuscateUrls   bool   `json:"obfuscateUrls"`
	Delete404       bool   `json:"delete404"`
	DeleteError     bool   `json:"deleteError"`
	DeleteConnError bool   `json:"deleteConnError"`
	DeleteTimeout   bool   `json:"deleteTimeout"`
}

var (
	configCache *Config
	configMutex sync.RWMutex
)

// LoadConfig loads the configuration from file or returns the cached
// instance. Falls back to defaults when the file is missing or invalid, then
// validates so every field carries a usable value.
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache
	}

	configPath := "/settings/config.json"
	config, err := loadFromFile(configPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", configPath, err)
		log.Printf("Falling back to default configuration...")
		config = getDefaultConfig()
	}

	validateAndSetDefaults(config)
	configCache = config

	if config.Debug {
		log.Printf("Configuration loaded:")
		log.Printf("  Listen: %s", config.ListenAddr)
		log.Printf("  Stations file: %s", config.StationsFile)
		log.Printf("  Max concurrency: %d", config.MaxConcurrency)
		log.Printf("  Check timeout: %s", config.CheckTimeout)
		log.Printf("  Obfuscate URLs: %v", config.ObfuscateUrls)
	}

	return config
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config, parsing duration strings.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		BaseURL:         cf.BaseURL,
		ListenAddr:      cf.ListenAddr,
		StationsFile:    cf.StationsFile,
		MaxConcurrency:  cf.MaxConcurrency,
		RenameTemplate:  cf.RenameTemplate,
		UserAgent:       cf.UserAgent,
		CacheEnabled:    cf.CacheEnabled,
		Debug:           cf.Debug,
		ObfuscateUrls:   cf.ObfuscateUrls,
		Delete404:       cf.Delete404,
		DeleteError:     cf.DeleteError,
		DeleteConnError: cf.DeleteConnError,
		DeleteTimeout:   cf.DeleteTimeout,
	}

	var err error
	if config.CheckTimeout, err = time.ParseDuration(cf.CheckTimeout); err != nil {
		return nil, fmt.Errorf("invalid checkTimeout: %w", err)
	}
	if config.CacheDuration, err = time.ParseDuration(cf.CacheDuration); err != nil {
		return nil, fmt.Errorf("invalid cacheDuration: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a baseline configuration when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:8080",
		ListenAddr:      ":8080",
		StationsFile:    "/settings/stations.txt",
		MaxConcurrency:  10,
		CheckTimeout:    10 * time.Second,
		RenameTemplate:  types.DefaultRenameTemplate,
		UserAgent:       "Mozilla/5.0",
		CacheEnabled:    true,
		CacheDuration:   30 * time.Minute,
		Debug:           false,
		ObfuscateUrls:   false,
		Delete404:       true,
		DeleteError:     true,
		DeleteConnError: true,
		DeleteTimeout:   true,
	}
}

// validateAndSetDefaults fills in defaults for missing or out-of-range values.
func validateAndSetDefaults(config *Config) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.StationsFile == "" {
		config.StationsFile = "/settings/stations.txt"
	}
	if config.MaxConcurrency < 1 || config.MaxConcurrency > 50 {
		config.MaxConcurrency = 10
	}
	if config.CheckTimeout < time.Second || config.CheckTimeout > 60*time.Second {
		config.CheckTimeout = 10 * time.Second
	}
	if config.RenameTemplate == "" {
		config.RenameTemplate = types.DefaultRenameTemplate
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0"
	}
	if config.CacheDuration <= 0 {
		config.CacheDuration = 30 * time.Minute
	}
}

// CreateExampleConfig writes an example config file to disk.
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		BaseURL:         "http://localhost:8080",
		ListenAddr:      ":8080",
		StationsFile:    "/settings/stations.txt",
		MaxConcurrency:  10,
		CheckTimeout:    "10s",
		RenameTemplate:  types.DefaultRenameTemplate,
		UserAgent:       "Mozilla/5.0",
		CacheEnabled:    true,
		CacheDuration:   "30m",
		Debug:           false,
		ObfuscateUrls:   true,
		Delete404:       true,
		DeleteError:     true,
		DeleteConnError: true,
		DeleteTimeout:   true,
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ClearConfigCache resets the cached config, forcing a reload on the next
// LoadConfig call.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}
