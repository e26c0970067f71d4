package codec

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"
)

// JSONMarshal encodes v into JSON.
func JSONMarshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

// JSONUnmarshalStrict decodes JSON data into v, rejecting fields v does not
// declare and anything but whitespace after the first value.
func JSONUnmarshalStrict(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := gojson.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}

	rest, err := io.ReadAll(io.MultiReader(dec.Buffered(), r))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(rest)) > 0 {
		return ErrTrailingData
	}
	return nil
}
