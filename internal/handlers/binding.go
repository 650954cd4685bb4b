package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// ErrEmptyBody is returned by BindNestedOrFlat when the request has no body.
var ErrEmptyBody = errors.New("request body is empty")

// BindNestedOrFlat decodes the request body into obj. A body of the form
// {"offer": {...}} is unwrapped when key is "offer"; anything else is decoded
// as a flat object. The decoded struct then goes through gin's validator, so
// `binding` tags apply. The body is restored for later reads.
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	if c.Request.Body == nil {
		return ErrEmptyBody
	}
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if len(bytes.TrimSpace(bodyBytes)) == 0 {
		return ErrEmptyBody
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &nested); err == nil {
		if val, ok := nested[key]; ok {
			bodyBytes = val
		}
	}

	if err := json.Unmarshal(bodyBytes, obj); err != nil {
		return err
	}
	if binding.Validator == nil {
		return nil
	}
	return binding.Validator.ValidateStruct(obj)
}
