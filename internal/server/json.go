package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to write response")
	}
}
