package codec

import "errors"

var ErrTrailingData = errors.New("unexpected data after JSON value")
