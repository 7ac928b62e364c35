package kjoin

import (
	"context"
	"encoding/json"
	"github.com/gorilla/mux"
	"github.com/pickme-go/k-join/store"
	"net/http"
)

// Router serves the registered slot stores plus:
//
//	GET /pending  events waiting for their counterpart
//	GET /stats    event, pair and error counters
func (s *CoStream) Router() *mux.Router {
	r := store.NewRouter(s.registry, s.logger)

	r.HandleFunc(`/pending`, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")

		pending, err := s.Pending(context.Background())
		if err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			if err := json.NewEncoder(writer).Encode(store.Err{Err: err.Error()}); err != nil {
				s.logger.Error(err)
			}
			return
		}

		if err := json.NewEncoder(writer).Encode(pending); err != nil {
			s.logger.Error(err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc(`/stats`, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(writer).Encode(s.Stats()); err != nil {
			s.logger.Error(err)
		}
	}).Methods(http.MethodGet)

	return r
}
