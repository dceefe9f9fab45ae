package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radio-manager/work/config"
	"radio-manager/work/logger"
	"radio-manager/work/manager"
	"radio-manager/work/types"
)

func newTestManager() *manager.Manager {
	cfg := &config.Config{
		MaxConcurrency: 2,
		CheckTimeout:   2 * time.Second,
		RenameTemplate: types.DefaultRenameTemplate,
		UserAgent:      "test-agent",
		Delete404:      true,
		DeleteError:    true,
	}
	return manager.New(cfg, logger.New("ERROR"))
}

func newTestRouter(m *manager.Manager) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/stations", HandleListStations(m)).Methods("GET")
	router.HandleFunc("/api/stations", HandleAddStation(m)).Methods("POST")
	router.HandleFunc("/api/stations/import", HandleImport(m)).Methods("POST")
	router.HandleFunc("/api/stations/export", HandleExport(m)).Methods("GET")
	router.HandleFunc("/api/stations/{index:[0-9]+}", HandleUpdateStation(m)).Methods("PUT")
	router.HandleFunc("/api/stations/{index:[0-9]+}", HandleRemoveStation(m)).Methods("DELETE")
	router.HandleFunc("/api/check/start", HandleStartCheck(m)).Methods("POST")
	router.HandleFunc("/api/check/status", HandleCheckStatus(m)).Methods("GET")
	router.HandleFunc("/api/rename", HandleRename(m)).Methods("POST")
	router.HandleFunc("/api/duplicates/find", HandleFindDuplicates(m)).Methods("POST")
	router.HandleFunc("/api/duplicates/remove", HandleRemoveDuplicates(m)).Methods("POST")
	router.HandleFunc("/api/stations/remove-inactive", HandleRemoveInactive(m)).Methods("POST")
	router.HandleFunc("/api/stations/fix-https", HandleFixHTTPS(m)).Methods("POST")
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestImportAndList(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	rec := doRequest(t, router, "POST", "/api/stations/import",
		"Radio One\thttp://example.com/a\t0\nRadio Two\thttp://example.com/b\t-10\n")
	require.Equal(t, http.StatusOK, rec.Code)

	var imported struct {
		Loaded      int      `json:"loaded"`
		Diagnostics []string `json:"diagnostics"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&imported))
	assert.Equal(t, 2, imported.Loaded)
	require.Len(t, imported.Diagnostics, 1)
	assert.Equal(t, "2 succeeded, 0 failed", imported.Diagnostics[0])

	rec = doRequest(t, router, "GET", "/api/stations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var stations []struct {
		Record types.StationRecord `json:"record"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stations))
	require.Len(t, stations, 2)
	assert.Equal(t, "Radio One", stations[0].Record.Name)
	assert.Equal(t, "http://example.com/b", stations[1].Record.URL)
}

func TestImportReportsDiagnostics(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	rec := doRequest(t, router, "POST", "/api/stations/import",
		"Radio One\thttp://example.com/a\t0\nBroken Line Without URL\n")
	require.Equal(t, http.StatusOK, rec.Code)

	var imported struct {
		Loaded      int      `json:"loaded"`
		Diagnostics []string `json:"diagnostics"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&imported))
	assert.Equal(t, 1, imported.Loaded)
	require.Len(t, imported.Diagnostics, 2)
	assert.Contains(t, imported.Diagnostics[1], "1 failed")
}

func TestExportRoundTrip(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	content := "Radio One\thttp://example.com/a\t5\r\n"
	rec := doRequest(t, router, "POST", "/api/stations/import", content)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, "GET", "/api/stations/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stations.txt")
	assert.Equal(t, content, rec.Body.String())
}

func TestAddStation(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	rec := doRequest(t, router, "POST", "/api/stations",
		`{"name":"Radio One","url":"http://example.com/a","volume":0}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, 0, created["index"])
	assert.Equal(t, 1, m.Store.Len())
}

func TestAddStationRejectsBadURL(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	rec := doRequest(t, router, "POST", "/api/stations",
		`{"name":"Radio One","url":"ftp://example.com/a","volume":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, m.Store.Len())
}

func TestUpdateAndRemoveStation(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	_, err := m.Store.Add(types.StationRecord{Name: "Radio One", URL: "http://example.com/a"})
	require.NoError(t, err)

	rec := doRequest(t, router, "PUT", "/api/stations/0",
		`{"name":"Renamed","url":"http://example.com/b","volume":3}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	st, err := m.Store.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", st.Record.Name)

	rec = doRequest(t, router, "PUT", "/api/stations/7", `{"name":"X","url":"http://example.com/x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, "DELETE", "/api/stations/0", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, m.Store.Len())
}

func TestStartCheckEmptyTableConflicts(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	rec := doRequest(t, router, "POST", "/api/check/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, "GET", "/api/check/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status manager.CheckStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.False(t, status.Running)
}

func TestRenameUsesConfiguredTemplate(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	_, err := m.Store.Add(types.StationRecord{Name: "old name", URL: "http://example.com/a"})
	require.NoError(t, err)
	m.Store.SetResult(0, "[OK][STREAM][Radio X][audio/mpeg][128][Pop]", "")

	rec := doRequest(t, router, "POST", "/api/rename", `{"applyToAll":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var renamed struct {
		Renamed int `json:"renamed"`
		Changes []struct {
			OldName string `json:"oldName"`
			NewName string `json:"newName"`
		} `json:"changes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&renamed))
	assert.Equal(t, 1, renamed.Renamed)
	require.Len(t, renamed.Changes, 1)
	assert.Equal(t, "old name", renamed.Changes[0].OldName)

	st, err := m.Store.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "Radio X [MPEG - 128] (Pop)", st.Record.Name)
}

func TestDuplicateWorkflow(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	m.Store.Add(types.StationRecord{Name: "A", URL: "http://example.com/same"})
	m.Store.Add(types.StationRecord{Name: "B", URL: "http://EXAMPLE.com/same"})
	m.Store.Add(types.StationRecord{Name: "C", URL: "http://example.com/other"})

	rec := doRequest(t, router, "POST", "/api/duplicates/find", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var found map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&found))
	assert.Equal(t, 1, found["found"])

	rec = doRequest(t, router, "POST", "/api/duplicates/remove", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, m.Store.Len())
}

func TestRemoveInactiveDefaultsToConfigFlags(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	m.Store.Add(types.StationRecord{Name: "Dead", URL: "http://example.com/a"})
	m.Store.Add(types.StationRecord{Name: "Timed out", URL: "http://example.com/b"})
	m.Store.Add(types.StationRecord{Name: "Live", URL: "http://example.com/c"})
	m.Store.SetResult(0, "[404]", "")
	m.Store.SetResult(1, "[Timeout]", "")
	m.Store.SetResult(2, "[OK][STREAM][Live][audio/mpeg][128][Pop]", "")

	// Delete404 and DeleteError are set in the test config, DeleteTimeout is
	// not, so the timed out station must survive.
	rec := doRequest(t, router, "POST", "/api/stations/remove-inactive", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Removed int      `json:"removed"`
		Tokens  []string `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Removed)
	assert.Equal(t, []string{"404", "Error"}, resp.Tokens)
	assert.Equal(t, 2, m.Store.Len())
}

func TestRemoveInactiveExplicitTokens(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	m.Store.Add(types.StationRecord{Name: "Timed out", URL: "http://example.com/a"})
	m.Store.SetResult(0, "[Timeout]", "")

	rec := doRequest(t, router, "POST", "/api/stations/remove-inactive", `{"tokens":["Timeout"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, m.Store.Len())
}

func TestFixHTTPS(t *testing.T) {
	m := newTestManager()
	router := newTestRouter(m)

	m.Store.Add(types.StationRecord{Name: "A", URL: "https://example.com/a"})
	m.Store.Add(types.StationRecord{Name: "B", URL: "http://example.com/b"})

	rec := doRequest(t, router, "POST", "/api/stations/fix-https", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp["changed"])

	st, _ := m.Store.Get(0)
	assert.Equal(t, "http://example.com/a", st.Record.URL)
}
