// Package handlers exposes the station table and the check machinery over
// HTTP. Handlers are thin: they decode the request, call into the manager and
// encode the outcome, leaving all table semantics to the station package.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"radio-manager/work/manager"
	"radio-manager/work/types"
)

const maxImportBytes = 16 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// HandleListStations returns the full table with result cells.
func HandleListStations(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.Store.List())
	}
}

// HandleImport replaces the table with the uploaded station list. The body is
// the raw exchange-format file; parse diagnostics come back in the response
// so a client can show what was skipped.
func HandleImport(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		count, diags := m.Store.LoadContent(string(body))
		m.Logger.Info("imported %d stations", count)

		writeJSON(w, http.StatusOK, map[string]any{
			"loaded":      count,
			"diagnostics": diags,
		})
	}
}

// HandleExport serves the table in the exchange format.
func HandleExport(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="stations.txt"`)
		w.Write(m.Store.Export())
	}
}

// HandleAddStation appends one station from a JSON record.
func HandleAddStation(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec types.StationRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		index, err := m.Store.Add(rec)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"index": index})
	}
}

func stationIndex(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["index"])
}

// HandleUpdateStation replaces the station at {index}.
func HandleUpdateStation(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := stationIndex(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		var rec types.StationRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := m.Store.Update(index, rec); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRemoveStation deletes the station at {index}.
func HandleRemoveStation(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := stationIndex(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := m.Store.Remove(index); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleStartCheck kicks off a probe run over the whole table.
func HandleStartCheck(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.StartCheck(); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, m.Status())
	}
}

// HandleCancelCheck aborts the active run.
func HandleCancelCheck(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.CancelCheck() {
			writeJSON(w, http.StatusOK, map[string]bool{"cancelled": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
	}
}

// HandleCheckStatus reports run progress for polling clients.
func HandleCheckStatus(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.Status())
	}
}

type renameRequest struct {
	Template   string `json:"template"`
	ApplyToAll bool   `json:"applyToAll"`
	Index      int    `json:"index"`
}

// HandleRename applies the rename template to checked stations. An empty
// template falls back to the configured one.
func HandleRename(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if req.Template == "" {
			req.Template = m.Config().RenameTemplate
		}

		changes := m.Store.ApplyRename(req.Template, req.ApplyToAll, req.Index)
		m.Logger.Info("renamed %d stations", len(changes))
		writeJSON(w, http.StatusOK, map[string]any{
			"renamed": len(changes),
			"changes": changes,
		})
	}
}

// HandleFindDuplicates marks duplicate URLs with [DOUBLE].
func HandleFindDuplicates(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found := m.Store.FindDuplicates()
		m.Logger.Info("found %d duplicates among %d stations", found, m.Store.Len())
		writeJSON(w, http.StatusOK, map[string]int{"found": found})
	}
}

// HandleRemoveDuplicates deletes the marked duplicates.
func HandleRemoveDuplicates(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed := m.Store.RemoveDuplicates()
		m.Logger.Info("removed %d duplicates", removed)
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
	}
}

type removeInactiveRequest struct {
	Tokens []string `json:"tokens"`
}

// HandleRemoveInactive deletes stations whose last result matches the given
// dead tokens, defaulting to the delete flags from configuration.
func HandleRemoveInactive(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req removeInactiveRequest
		if r.Body != nil {
			// A missing or empty body just means "use the configured flags".
			json.NewDecoder(r.Body).Decode(&req)
		}
		if len(req.Tokens) == 0 {
			req.Tokens = m.DeadTokens()
		}

		removed := m.Store.RemoveInactive(req.Tokens)
		m.Logger.Info("removed %d inactive stations (flags: %v)", removed, req.Tokens)
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "tokens": req.Tokens})
	}
}

// HandleFixHTTPS downgrades https station URLs to http.
func HandleFixHTTPS(m *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changed := m.Store.FixHTTPS()
		m.Logger.Info("downgraded %d station URLs to http", changed)
		writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
	}
}
