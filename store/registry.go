package store

import (
	"fmt"
	"github.com/pickme-go/errors"
	"sort"
	"sync"
)

type Registry interface {
	Register(store Store) error
	Store(name string) Store
	List() []string
}

type registry struct {
	stores map[string]Store
	mu     *sync.Mutex
}

func NewRegistry() Registry {
	return &registry{
		stores: make(map[string]Store),
		mu:     &sync.Mutex{},
	}
}

func (r *registry) Register(store Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := store.Name()
	if _, ok := r.stores[name]; ok {
		return errors.New(fmt.Sprintf(`store [%s] already exist`, name))
	}

	r.stores[name] = store
	return nil
}

func (r *registry) Store(name string) Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stores[name]
}

func (r *registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []string
	for name := range r.stores {
		list = append(list, name)
	}
	sort.Strings(list)

	return list
}
