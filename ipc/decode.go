package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"storesync/codec"
)

type Request struct {
	Id      string          `json:"id" validate:"required,max=128"`
	Kind    Kind            `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Response struct {
	Id      string     `json:"id"`
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

func okResponse(id string, data any) Response {
	return Response{Id: id, Success: true, Data: data}
}

func errorResponse(id string, err error) Response {
	return Response{Id: id, Error: &ErrorBody{Code: errorCode(err), Message: err.Error()}}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses and validates a request and its payload. Anything the
// contract does not describe is rejected: unknown fields at either level,
// unknown kinds, trailing data and failed validation.
func Decode(data []byte) (Request, Message, error) {
	var req Request
	if err := codec.JSONUnmarshalStrict(data, &req); err != nil {
		return Request{}, nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if err := validate.Struct(req); err != nil {
		return req, nil, fmt.Errorf("%w: %s", ErrMalformedRequest, describe(err))
	}

	msg, err := DecodePayload(req.Kind, req.Payload)
	if err != nil {
		return req, nil, err
	}
	return req, msg, nil
}

// DecodePayload decodes the payload of a request of the given kind. An
// absent or null payload decodes as an empty object.
func DecodePayload(kind Kind, payload []byte) (Message, error) {
	newMessage, ok := payloads[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	msg := newMessage()
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}
	if err := codec.JSONUnmarshalStrict(payload, msg); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedRequest, kind, err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %s", ErrMalformedRequest, kind, describe(err))
	}
	return msg, nil
}

func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())
	}
	return err.Error()
}
