package join

import (
	"context"
	"fmt"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/encoding"
	"github.com/pickme-go/k-join/store"
)

// SlotEncoder frames a Slot as one side byte followed by the value encoded with
// that side's encoder.
type SlotEncoder struct {
	Primary   encoding.Encoder
	Secondary encoding.Encoder
}

func (e SlotEncoder) encoder(side Side) (encoding.Encoder, error) {
	switch side {
	case SidePrimary:
		return e.Primary, nil
	case SideSecondary:
		return e.Secondary, nil
	}

	return nil, errors.New(fmt.Sprintf(`invalid slot side [%d]`, side))
}

func (e SlotEncoder) Encode(data interface{}) ([]byte, error) {
	var slot *Slot
	switch s := data.(type) {
	case *Slot:
		slot = s
	case Slot:
		slot = &s
	default:
		return nil, errors.New(fmt.Sprintf(`invalid type [%T] expected join.Slot`, data))
	}

	enc, err := e.encoder(slot.Side)
	if err != nil {
		return nil, err
	}

	v, err := enc.Encode(slot.Value)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`%s value encode error`, slot.Side))
	}

	return append([]byte{byte(slot.Side)}, v...), nil
}

func (e SlotEncoder) Decode(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, errors.New(`empty slot`)
	}

	side := Side(data[0])
	enc, err := e.encoder(side)
	if err != nil {
		return nil, err
	}

	v, err := enc.Decode(data[1:])
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`%s value decode error`, side))
	}

	return &Slot{Side: side, Value: v}, nil
}

// StoreSlots keeps pending slots in a store.Store, so a persistent backend makes
// them survive restarts. The store's value encoder must be a SlotEncoder.
type StoreSlots struct {
	store store.Store
}

func NewStoreSlots(s store.Store) (*StoreSlots, error) {
	if _, ok := s.ValEncoder().(SlotEncoder); !ok {
		return nil, errors.New(fmt.Sprintf(`store [%s] value encoder should be join.SlotEncoder`, s.Name()))
	}

	return &StoreSlots{store: s}, nil
}

func (s *StoreSlots) Store() store.Store {
	return s.store
}

func (s *StoreSlots) Get(ctx context.Context, key interface{}) (*Slot, error) {
	v, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, nil
	}

	slot, ok := v.(*Slot)
	if !ok {
		return nil, errors.New(fmt.Sprintf(`store [%s] returned [%T] for a slot`, s.store.Name(), v))
	}

	return slot, nil
}

func (s *StoreSlots) Set(ctx context.Context, key interface{}, slot *Slot) error {
	return s.store.Set(ctx, key, slot, 0)
}

func (s *StoreSlots) Clear(ctx context.Context, key interface{}) error {
	return s.store.Delete(ctx, key)
}

func (s *StoreSlots) Keys(ctx context.Context) ([]interface{}, error) {
	i, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	defer i.Close()

	var keys []interface{}
	for ; i.Valid(); i.Next() {
		k, err := i.Key()
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] key decode error`, s.store.Name()))
		}
		keys = append(keys, k)
	}

	if i.Error() != nil {
		return nil, i.Error()
	}

	return keys, nil
}

func (s *StoreSlots) Close() error {
	return s.store.Close()
}
