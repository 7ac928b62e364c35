package join

import (
	"context"
	"sync"
)

// Window is an in-memory SlotStore. Byte slice keys are stored by their string
// form so they can be map keys.
type Window struct {
	*sync.Mutex
	window map[interface{}]*Slot
}

func NewWindow() *Window {
	return &Window{
		new(sync.Mutex),
		make(map[interface{}]*Slot),
	}
}

func mapKey(key interface{}) interface{} {
	if b, ok := key.([]byte); ok {
		return string(b)
	}

	return key
}

func (w *Window) Set(_ context.Context, key interface{}, slot *Slot) error {
	w.Lock()
	defer w.Unlock()
	w.window[mapKey(key)] = slot
	return nil
}

func (w *Window) Get(_ context.Context, key interface{}) (*Slot, error) {
	w.Lock()
	defer w.Unlock()

	return w.window[mapKey(key)], nil
}

func (w *Window) Clear(_ context.Context, key interface{}) error {
	w.Lock()
	defer w.Unlock()
	delete(w.window, mapKey(key))
	return nil
}

func (w *Window) Keys(_ context.Context) ([]interface{}, error) {
	w.Lock()
	defer w.Unlock()

	keys := make([]interface{}, 0, len(w.window))
	for k := range w.window {
		keys = append(keys, k)
	}

	return keys, nil
}

func (w *Window) Len() int {
	w.Lock()
	defer w.Unlock()
	return len(w.window)
}

func (w *Window) Close() error {
	return nil
}
