package ingest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/api"
	"github.com/LeonardoBeccarini/greenhouse_insights/internal/model/messages"
)

const maxBodyBytes = 64 << 10

// Routes mounts POST and HEAD /api/sensors/data. HEAD lets gateways probe
// connectivity without sending a reading.
func Routes(r chi.Router, ing *Ingestor, ratePerMinute int, logger *zap.Logger) {
	r.With(api.RateLimit(ratePerMinute)).Post("/api/sensors/data", dataHandler(ing, logger))
	r.Head("/api/sensors/data", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func dataHandler(ing *Ingestor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in messages.SensorDataInput
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
			ing.metrics.ReadingRejected("malformed_json")
			api.WriteError(w, http.StatusBadRequest, "malformed JSON body")
			return
		}

		res, err := ing.Ingest(r.Context(), in, Origin{Transport: "http", ClientIP: api.ClientIP(r)})
		switch {
		case errors.Is(err, ErrInvalidPayload):
			api.WriteError(w, http.StatusBadRequest, err.Error())
		case err != nil:
			logger.Error("error storing sensor data", zap.Error(err))
			api.WriteError(w, http.StatusInternalServerError, "Error storing sensor data")
		case res.Duplicate:
			api.WriteJSON(w, http.StatusOK, res.Reading)
		default:
			api.WriteJSON(w, http.StatusCreated, res.Reading)
		}
	}
}
