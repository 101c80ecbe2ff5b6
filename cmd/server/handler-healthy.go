package main

import (
	"log/slog"
	"net/http"
)

// healthy handler for health checks.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "write health response", slog.Any("error", err))
	}
}
