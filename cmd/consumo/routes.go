package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	getconfiguration "consumo-backend/http-server/configuration/get"
	removeconfiguration "consumo-backend/http-server/configuration/remove"
	saveconfiguration "consumo-backend/http-server/configuration/save"
	upconfiguration "consumo-backend/http-server/configuration/update"
	formulatest "consumo-backend/http-server/formula-test"
	generate_excel "consumo-backend/http-server/generate-report/generate-excel"
	"consumo-backend/http-server/leftovers"
	simhandler "consumo-backend/http-server/simulation"
	"consumo-backend/internal/config"
	"consumo-backend/internal/middleware/auth"
	"consumo-backend/internal/service/catalog"
	generate_excel2 "consumo-backend/internal/service/generate-excel"
	"consumo-backend/internal/service/simulation"
)

func routes(cfg config.Config, log *slog.Logger, cat *catalog.Catalog, sim *simulation.Service, genService *generate_excel2.GenerateExcelService) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// каталог конфигураций
	router.Get("/api/configurations", getconfiguration.GetConfigurations(log, cat))
	router.Get("/api/configurations/{id}", getconfiguration.GetConfigurationByID(log, cat))

	router.Post("/api/formula/test", formulatest.TestFormula(log, sim))

	// быстрая симуляция
	router.Post("/api/simulation", simhandler.SimulateConsumption(log, sim))
	router.Post("/api/simulation/quote", simhandler.SimulateQuote(log, sim))
	router.Post("/api/simulation/excel", generate_excel.GenerateSimulationExcel(log, genService))

	// учет остатков
	router.Get("/api/leftovers", leftovers.ListLeftovers(log, sim))
	router.Post("/api/leftovers", leftovers.RegisterLeftovers(log, sim))
	router.Delete("/api/leftovers/{id}", leftovers.ConsumeLeftover(log, sim))

	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	adminRouter.Post("/configurations", saveconfiguration.SaveConfiguration(log, cat))
	adminRouter.Post("/configurations/validate", saveconfiguration.ValidateConfiguration(log))
	adminRouter.Put("/configurations/{id}", upconfiguration.UpdateConfiguration(log, cat))
	adminRouter.Delete("/configurations/{id}", removeconfiguration.DeleteConfiguration(log, cat))

	router.Mount("/api/admin", adminRouter)

	if cfg.FrontendDir != "" {
		mountFrontend(router, log, cfg.FrontendDir)
	}

	return router
}

// mountFrontend отдает собранную админку, остальные пути уходят в index.html.
func mountFrontend(router *chi.Mux, log *slog.Logger, frontendDir string) {
	if _, err := os.Stat(frontendDir); err != nil {
		log.Warn("Папка фронтенда не найдена", slog.String("path", frontendDir))
		return
	}

	index := filepath.Join(frontendDir, "index.html")
	router.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(frontendDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}
		http.ServeFile(w, r, index)
	})
}
