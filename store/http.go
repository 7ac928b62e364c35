package store

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
	"net/http"
)

type Err struct {
	Err string `json:"error"`
}

type keyVal struct {
	Key   interface{} `json:"key"`
	Value interface{} `json:"value"`
}

// NewRouter exposes read only views of the registered stores.
func NewRouter(registry Registry, logger log.Logger) *mux.Router {

	r := mux.NewRouter()

	r.HandleFunc(`/stores`, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(writer).Encode(registry.List()); err != nil {
			logger.Error(err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc(`/stores/{store}`, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")

		store := registry.Store(mux.Vars(request)[`store`])
		if store == nil {
			writeError(writer, http.StatusNotFound, errors.New(`store dose not exist`), logger)
			return
		}

		i, err := store.GetAll(context.Background())
		if err != nil {
			writeError(writer, http.StatusInternalServerError, err, logger)
			return
		}
		defer i.Close()

		if err := encodeAll(writer, i, logger); err != nil {
			logger.Error(err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc(`/stores/{store}/{key}`, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")

		vars := mux.Vars(request)
		store := registry.Store(vars[`store`])
		if store == nil {
			writeError(writer, http.StatusNotFound, errors.New(`store dose not exist`), logger)
			return
		}

		key, err := store.KeyEncoder().Decode([]byte(vars[`key`]))
		if err != nil {
			writeError(writer, http.StatusBadRequest, err, logger)
			return
		}

		data, err := store.Get(context.Background(), key)
		if err != nil {
			writeError(writer, http.StatusInternalServerError, err, logger)
			return
		}

		if data == nil {
			writeError(writer, http.StatusNotFound, errors.New(fmt.Sprintf(`key [%v] dose not exist`, key)), logger)
			return
		}

		if err := json.NewEncoder(writer).Encode(keyVal{Key: key, Value: data}); err != nil {
			logger.Error(err)
		}
	}).Methods(http.MethodGet)

	return r
}

// MakeEndpoints serves handler on host in the background.
func MakeEndpoints(host string, handler http.Handler, logger log.Logger) *http.Server {
	srv := &http.Server{
		Addr:    host,
		Handler: handlers.CORS()(handler),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf(`cannot start web server : %+v`, err))
		}
	}()

	logger.Info(fmt.Sprintf(`http server started on %s`, host))

	return srv
}

func encodeAll(w http.ResponseWriter, i Iterator, logger log.Logger) error {
	keyVals := make([]keyVal, 0)

	for i.Valid() {
		k, err := i.Key()
		if err != nil {
			logger.Error(err)
			i.Next()
			continue
		}

		v, err := i.Value()
		if err != nil {
			logger.Error(err)
			i.Next()
			continue
		}

		keyVals = append(keyVals, keyVal{Key: k, Value: v})
		i.Next()
	}

	return json.NewEncoder(w).Encode(keyVals)
}

func writeError(w http.ResponseWriter, status int, e error, logger log.Logger) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Err{Err: e.Error()}); err != nil {
		logger.Error(err)
	}
}
