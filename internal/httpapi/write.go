package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/John-Robertt/submerge/internal/model"
)

func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func WriteYAML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError writes the JSON error body and counts it in /metrics.
func WriteError(w http.ResponseWriter, status int, e model.AppError) {
	metricsIncAppError(e.Stage, e.Code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: e})
}
