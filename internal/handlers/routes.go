package handlers

import "net/http"

// Handlers groups every API handler for route registration.
type Handlers struct {
	Health   *HealthHandler
	Generate *GenerateHandler
	Runs     *RunHandler
	Layouts  *LayoutHandler
	Modules  *ModuleHandler
	Files    *FileHandler
}

// NewMux registers the API routes.
func NewMux(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/health", h.Health)
	mux.Handle("/v1/generate", h.Generate)
	mux.Handle("/v1/runs/{id}", h.Runs)

	mux.HandleFunc("/v1/layouts/validate", h.Layouts.Validate)
	mux.HandleFunc("/v1/layouts/compile", h.Layouts.Compile)

	mux.Handle("/v1/modules", h.Modules)
	mux.Handle("/v1/modules/{name}", h.Modules)

	mux.HandleFunc("/v1/files", h.Files.List)
	mux.HandleFunc("/v1/download/{filename}", h.Files.Download)

	return mux
}
