package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/api/middleware"
)

// Router holds every handler served by the API.
type Router struct {
	Transactions *TransactionsHandler
	Sync         *SyncHandler
	Settings     *SettingsHandler
	Reports      *ReportsHandler
	Jobs         *JobsHandler
}

// Mux registers the routes. Handlers left nil are not served.
func (rt Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	if h := rt.Transactions; h != nil {
		mux.HandleFunc("/api/parse-transaction", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				h.ParseTransaction(w, r)
			} else {
				methodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				h.ListTransactions(w, r)
			case http.MethodPost:
				h.CreateTransaction(w, r)
			default:
				methodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
			if id == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
				return
			}
			switch {
			case id == "text" && r.Method == http.MethodPost:
				h.CreateFromText(w, r)
			case r.Method == http.MethodPut:
				h.UpdateTransaction(w, r, id)
			case r.Method == http.MethodDelete:
				h.DeleteTransaction(w, r, id)
			default:
				methodNotAllowed(w)
			}
		})
	}

	if h := rt.Sync; h != nil {
		mux.HandleFunc("/api/sync-monobank", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				h.SyncMonobank(w, r)
			} else {
				methodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/sync-monobank/jobs", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				h.EnqueueSync(w, r)
			} else {
				methodNotAllowed(w)
			}
		})
	}

	if h := rt.Settings; h != nil {
		mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				h.GetSettings(w, r)
			} else {
				methodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/settings/rate", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				h.SetRate(w, r)
			} else {
				methodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/settings/monobank", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				h.SetMonobank(w, r)
			} else {
				methodNotAllowed(w)
			}
		})
	}

	if h := rt.Reports; h != nil {
		mux.HandleFunc("/api/report", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				h.GetReport(w, r)
			} else {
				methodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/report/export", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				h.ExportCSV(w, r)
			} else {
				methodNotAllowed(w)
			}
		})
	}

	if h := rt.Jobs; h != nil {
		mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				h.ListJobs(w, r)
			} else {
				methodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			h.GetJob(w, r, jobID)
		})
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}
