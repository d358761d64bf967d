package services

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	helper := NewValidationHelper()

	type earnRequest struct {
		AccountID string `validate:"required"`
		Amount    int64  `validate:"required,gt=0"`
	}

	t.Run("valid struct passes", func(t *testing.T) {
		assert.NoError(t, helper.ValidateStruct(&earnRequest{AccountID: "member1", Amount: 100}))
	})

	t.Run("missing fields fail", func(t *testing.T) {
		assert.Error(t, helper.ValidateStruct(&earnRequest{}))
	})

	t.Run("negative amount fails", func(t *testing.T) {
		assert.Error(t, helper.ValidateStruct(&earnRequest{AccountID: "member1", Amount: -1}))
	})
}

func TestSendErrorResponse(t *testing.T) {
	helper := NewValidationHelper()

	type req struct {
		Amount int64 `validate:"required,gt=0"`
	}
	verr := helper.ValidateStruct(&req{})

	w := httptest.NewRecorder()
	SendErrorResponse(w, "Validation failed", 400, verr)

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Contains(t, resp.Details, "Amount")
}
