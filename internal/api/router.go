package api

import (
	"database/sql"
	"net/http"
	"strings"

	"log/slog"

	"github.com/cleancity/cleancity/internal/auth"
	"github.com/cleancity/cleancity/internal/classify"
	"github.com/cleancity/cleancity/internal/metrics"
	"github.com/cleancity/cleancity/internal/reports"
)

// SetupRoutes configures all API routes.
func SetupRoutes(mux *http.ServeMux, db *sql.DB, manager *reports.Manager, checker classify.HealthChecker, collector *metrics.HTTPCollector, authConfig auth.Config, logger *slog.Logger) {
	reportHandler := NewReportHandler(manager, collector, logger)
	authHandler := NewAuthHandler(manager, authConfig, logger)
	adminHandler := NewAdminHandler(manager, logger)
	healthHandler := NewHealthHandler(db, checker, logger)

	authMiddleware := auth.Middleware(authConfig)
	supervisorOnly := auth.RequireRole(auth.RoleSupervisor, auth.RoleAdmin)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/register", corsPreflight("POST", authHandler.Register))
	mux.HandleFunc("/api/auth/login", corsPreflight("POST", authHandler.Login))
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.Me)).ServeHTTP(w, r)
	})

	// Health routes (public)
	mux.HandleFunc("/api/health", corsPreflight("GET", healthHandler.Health))
	mux.HandleFunc("/api/classifier/health", corsPreflight("GET", healthHandler.ClassifierHealth))

	// Leaderboard route (public)
	mux.HandleFunc("/api/leaderboard", corsPreflight("GET", reportHandler.Leaderboard))

	// Report collection routes
	mux.HandleFunc("/api/reports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}

		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				reportHandler.List(w, r)
			case http.MethodPost:
				reportHandler.Submit(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Batch assignment route (admin only)
	mux.HandleFunc("/api/reports/assign", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		authMiddleware(adminOnly(http.HandlerFunc(reportHandler.Assign))).ServeHTTP(w, r)
	})

	// Own submissions route
	mux.HandleFunc("/api/reports/mine", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(reportHandler.ListMine)).ServeHTTP(w, r)
	})

	// Report detail and lifecycle routes
	mux.HandleFunc("/api/reports/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/reports/" {
			http.NotFound(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}

		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle PATCH /api/reports/:id/status
			if r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/status") {
				supervisorOnly(http.HandlerFunc(reportHandler.UpdateStatus)).ServeHTTP(w, r)
				return
			}

			// Handle POST /api/reports/:id/resolve (supervisor)
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/resolve") {
				supervisorOnly(http.HandlerFunc(reportHandler.Resolve)).ServeHTTP(w, r)
				return
			}

			// Handle POST /api/reports/:id/permanent-resolved (admin)
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/permanent-resolved") {
				adminOnly(http.HandlerFunc(reportHandler.PermanentResolve)).ServeHTTP(w, r)
				return
			}

			// Handle POST /api/reports/:id/reject (admin)
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reject") {
				adminOnly(http.HandlerFunc(reportHandler.Reject)).ServeHTTP(w, r)
				return
			}

			// Handle /api/reports/:id
			switch r.Method {
			case http.MethodGet:
				reportHandler.Get(w, r)
			case http.MethodDelete:
				reportHandler.Delete(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Admin analytics routes
	mux.HandleFunc("/api/admin/dashboard", adminRoute(authMiddleware, adminOnly, adminHandler.Dashboard))
	mux.HandleFunc("/api/admin/overview/weekly", adminRoute(authMiddleware, adminOnly, adminHandler.WeeklyOverview))
	mux.HandleFunc("/api/admin/overview/hourly", adminRoute(authMiddleware, adminOnly, adminHandler.HourlyActivity))
	mux.HandleFunc("/api/admin/status-counts", adminRoute(authMiddleware, adminOnly, adminHandler.StatusCounts))

	// Supervisor management routes (admin only)
	mux.HandleFunc("/api/admin/supervisors", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(adminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				adminHandler.ListSupervisors(w, r)
			case http.MethodPost:
				adminHandler.CreateSupervisor(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		}))).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/admin/supervisors/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/admin/supervisors/" {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		authMiddleware(adminOnly(http.HandlerFunc(adminHandler.DeleteSupervisor))).ServeHTTP(w, r)
	})

	// CORS preflight fallback
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
}

func writeCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// corsPreflight wraps a public single-method handler with CORS handling.
func corsPreflight(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// adminRoute wraps a GET-only admin handler with CORS and auth.
func adminRoute(authMiddleware, adminOnly func(http.Handler) http.Handler, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writeCORSHeaders(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		authMiddleware(adminOnly(next)).ServeHTTP(w, r)
	}
}
