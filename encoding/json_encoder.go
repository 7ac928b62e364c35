package encoding

import (
	"fmt"
	"github.com/json-iterator/go"
	"github.com/pickme-go/errors"
	"reflect"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JsonEncoder encodes values as JSON. Decode yields a value of the same type as
// the sample given to NewJsonEncoder (pointer samples decode to pointers). The
// zero JsonEncoder decodes into generic maps and slices.
type JsonEncoder struct {
	typ reflect.Type
}

func NewJsonEncoder(sample interface{}) JsonEncoder {
	return JsonEncoder{typ: reflect.TypeOf(sample)}
}

func (e JsonEncoder) Encode(v interface{}) ([]byte, error) {
	byt, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`json encode failed for [%T]`, v))
	}

	return byt, nil
}

func (e JsonEncoder) Decode(data []byte) (interface{}, error) {
	if e.typ == nil {
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errors.WithPrevious(err, `json decode failed`)
		}
		return v, nil
	}

	if e.typ.Kind() == reflect.Ptr {
		v := reflect.New(e.typ.Elem())
		if err := json.Unmarshal(data, v.Interface()); err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`json decode failed for [%s]`, e.typ))
		}
		return v.Interface(), nil
	}

	v := reflect.New(e.typ)
	if err := json.Unmarshal(data, v.Interface()); err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`json decode failed for [%s]`, e.typ))
	}

	return v.Elem().Interface(), nil
}
