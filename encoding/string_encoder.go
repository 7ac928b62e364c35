package encoding

import (
	"fmt"
	"github.com/pickme-go/errors"
)

type StringEncoder struct{}

func (StringEncoder) Encode(v interface{}) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	}

	return nil, errors.New(fmt.Sprintf(`invalid type [%T] expected string`, v))
}

func (StringEncoder) Decode(data []byte) (interface{}, error) {
	return string(data), nil
}
