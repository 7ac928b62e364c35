package encoding

import (
	"fmt"
	"github.com/pickme-go/errors"
	"strconv"
)

// IntEncoder encodes integer keys as their decimal text so the encoded form stays
// readable in persistent backends and over HTTP.
type IntEncoder struct{}

func (IntEncoder) Encode(v interface{}) ([]byte, error) {
	switch i := v.(type) {
	case int:
		return []byte(strconv.Itoa(i)), nil
	case int32:
		return []byte(strconv.FormatInt(int64(i), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(i, 10)), nil
	}

	return nil, errors.New(fmt.Sprintf(`invalid type [%T] expected int`, v))
}

func (IntEncoder) Decode(data []byte) (interface{}, error) {
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot decode int`)
	}

	return i, nil
}

type Int64Encoder struct{}

func (Int64Encoder) Encode(v interface{}) ([]byte, error) {
	i, ok := v.(int64)
	if !ok {
		return nil, errors.New(fmt.Sprintf(`invalid type [%T] expected int64`, v))
	}

	return []byte(strconv.FormatInt(i, 10)), nil
}

func (Int64Encoder) Decode(data []byte) (interface{}, error) {
	i, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot decode int64`)
	}

	return i, nil
}
