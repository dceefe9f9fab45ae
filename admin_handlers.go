package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"radio-manager/work/config"
	"radio-manager/work/manager"
	"radio-manager/work/middleware"
	"radio-manager/work/result"
	"radio-manager/work/utils"

	"github.com/gorilla/mux"
)

// StatsResponse represents the system statistics exposed through the admin API,
// combining station table counters with process-level resource figures for the
// admin dashboard.
type StatsResponse struct {
	TotalStations     int    `json:"totalStations"`
	LiveStations      int    `json:"liveStations"`
	DeadStations      int    `json:"deadStations"`
	PlaylistStations  int    `json:"playlistStations"`
	DuplicateStations int    `json:"duplicateStations"`
	Unchecked         int    `json:"unchecked"`
	CheckRunning      bool   `json:"checkRunning"`
	MaxConcurrency    int    `json:"maxConcurrency"`
	Uptime            string `json:"uptime"`
	MemoryUsage       string `json:"memoryUsage"`
	CacheStatus       string `json:"cacheStatus"`
}

// LogEntry represents individual log entries captured by the admin interface
// for real-time monitoring without digging through container logs.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Global variables for admin interface state management and operational tracking
var (
	// adminStartTime records the admin interface initialization timestamp for
	// uptime calculation.
	adminStartTime = time.Now()

	// logEntries maintains a circular buffer of recent log entries with a 1000
	// entry limit, providing real-time debugging information through the admin
	// interface without unbounded memory growth. Guarded by logMu since every
	// handler appends to it.
	logEntries = make([]LogEntry, 0, 1000)
	logMu      sync.Mutex
)

// restartChan provides a signaling mechanism for graceful application restart
// operations initiated through the admin interface.
var restartChan = make(chan bool, 1)

// setupAdminRoutes configures the administrative HTTP routes: configuration
// display and editing, statistics, in-memory log retrieval and graceful
// restart. All admin endpoints carry CORS headers so a web dashboard served
// from another origin can reach them.
func setupAdminRoutes(router *mux.Router, m *manager.Manager) {
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("/static/"))))

	router.HandleFunc("/api/config", corsMiddleware(middleware.GzipMiddleware(handleGetConfig(m)))).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/config", corsMiddleware(handleSetConfig(m))).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/stats", corsMiddleware(middleware.GzipMiddleware(handleGetStats(m)))).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/logs", corsMiddleware(middleware.GzipMiddleware(handleGetLogs))).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/logs", corsMiddleware(handleClearLogs)).Methods("DELETE", "OPTIONS")
	router.HandleFunc("/api/restart", corsMiddleware(handleRestart)).Methods("POST", "OPTIONS")

	addLogEntry("info", "Admin interface initialized")
}

// corsMiddleware provides Cross-Origin Resource Sharing support for admin API
// endpoints, including preflight OPTIONS handling.
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addLogEntry("info", fmt.Sprintf("Request: %s %s", r.Method, r.URL.Path))

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// handleGetConfig retrieves the current system configuration directly from the
// configuration file, so the admin interface shows the persistent state rather
// than possibly modified runtime values.
func handleGetConfig(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		data, err := os.ReadFile("/settings/config.json")
		if err != nil {
			addLogEntry("error", fmt.Sprintf("Failed to read config file: %v", err))
			http.Error(w, "Failed to read config file", http.StatusInternalServerError)
			return
		}

		w.Write(data)
	}
}

// handleSetConfig processes configuration updates through the admin interface.
// The file is written atomically via a temporary file, the cached
// configuration is invalidated and the running components are rebuilt so the
// new settings take effect without a restart.
func handleSetConfig(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var configFile config.ConfigFile
		if err := json.NewDecoder(r.Body).Decode(&configFile); err != nil {
			addLogEntry("error", fmt.Sprintf("JSON decode error: %v", err))
			http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		configPath := "/settings/config.json"
		tempPath := configPath + ".tmp"

		data, err := json.MarshalIndent(configFile, "", "  ")
		if err != nil {
			addLogEntry("error", fmt.Sprintf("Failed to marshal config: %v", err))
			http.Error(w, "Failed to marshal config", http.StatusInternalServerError)
			return
		}

		if err := os.WriteFile(tempPath, data, 0644); err != nil {
			addLogEntry("error", fmt.Sprintf("Failed to write temp file: %v", err))
			http.Error(w, "Failed to write temp file: "+err.Error(), http.StatusInternalServerError)
			return
		}

		if err := os.Rename(tempPath, configPath); err != nil {
			addLogEntry("error", fmt.Sprintf("Failed to move temp file: %v", err))
			http.Error(w, "Failed to move config file: "+err.Error(), http.StatusInternalServerError)
			return
		}

		config.ClearConfigCache()
		m.ReloadConfig(config.LoadConfig())

		addLogEntry("info", "Configuration updated via admin interface")

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}
}

// handleGetStats generates system statistics for monitoring, counting the
// station table by result class and adding process resource figures.
func handleGetStats(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		live := 0
		dead := 0
		playlists := 0
		duplicates := 0
		unchecked := 0

		stations := m.Store.List()
		for _, st := range stations {
			switch {
			case st.ResultCell == "":
				unchecked++
			case st.ResultCell == result.DoubleMarker:
				duplicates++
			case strings.HasPrefix(st.ResultCell, "[OK][PL:"):
				playlists++
				live++
			case strings.HasPrefix(st.ResultCell, "[OK]"):
				live++
			default:
				dead++
			}
		}

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		cfg := m.Config()
		cacheStatus := "Disabled"
		if cfg.CacheEnabled {
			cacheStatus = "Enabled"
		}

		stats := StatsResponse{
			TotalStations:     len(stations),
			LiveStations:      live,
			DeadStations:      dead,
			PlaylistStations:  playlists,
			DuplicateStations: duplicates,
			Unchecked:         unchecked,
			CheckRunning:      m.Status().Running,
			MaxConcurrency:    cfg.MaxConcurrency,
			Uptime:            formatDuration(time.Since(adminStartTime)),
			MemoryUsage:       utils.FormatBytes(int64(mem.Alloc)),
			CacheStatus:       cacheStatus,
		}

		if err := json.NewEncoder(w).Encode(stats); err != nil {
			addLogEntry("error", fmt.Sprintf("Failed to encode stats: %v", err))
			http.Error(w, "Failed to encode stats", http.StatusInternalServerError)
		}
	}
}

// handleGetLogs retrieves the current log buffer for admin interface display
func handleGetLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	logMu.Lock()
	entries := make([]LogEntry, len(logEntries))
	copy(entries, logEntries)
	logMu.Unlock()

	if err := json.NewEncoder(w).Encode(entries); err != nil {
		http.Error(w, "Failed to encode logs", http.StatusInternalServerError)
	}
}

// handleClearLogs clears the admin log buffer and records the clearing action
func handleClearLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	logMu.Lock()
	logEntries = logEntries[:0]
	logMu.Unlock()
	addLogEntry("info", "Log entries cleared via admin interface")

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

// handleRestart initiates a graceful application restart through the
// coordination channel, letting the main loop run the restart sequence
// cleanly instead of killing the process.
func handleRestart(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	addLogEntry("info", "Restart requested via admin interface - triggering graceful restart")

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "restart_initiated",
		"message": "Restarting Radio Manager process...",
	})

	go func() {
		time.Sleep(500 * time.Millisecond)
		restartChan <- true
	}()
}

// addLogEntry adds a new entry to the admin log buffer with automatic size management
func addLogEntry(level, message string) {
	entry := LogEntry{
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Level:     level,
		Message:   message,
	}

	logMu.Lock()
	defer logMu.Unlock()

	logEntries = append(logEntries, entry)

	if len(logEntries) > 1000 {
		logEntries = logEntries[len(logEntries)-1000:]
	}
}

// formatDuration converts time.Duration to human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
