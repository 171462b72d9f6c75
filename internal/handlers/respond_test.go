package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/services"
)

func TestFail_StatusMapping(t *testing.T) {
	h := New(Deps{})
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ValidationErrors{"email": "required"}, http.StatusBadRequest, "invalid_input"},
		{&services.NoApplicableSizeError{ChildID: 3, Weight: "abc", Height: "30"}, http.StatusUnprocessableEntity, "no_applicable_size"},
		{fmt.Errorf("child 9: %w", gorm.ErrRecordNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("create client: %w", gorm.ErrDuplicatedKey), http.StatusConflict, "conflict"},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{context.Canceled, http.StatusServiceUnavailable, "unavailable"},
		{errors.New("disk I/O error"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.fail(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tc.err)
			assert.Equal(t, tc.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, http.StatusText(tc.status), body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestFail_FieldsInBody(t *testing.T) {
	h := New(Deps{})
	rec := httptest.NewRecorder()
	h.fail(rec, httptest.NewRequest(http.MethodGet, "/x", nil), &services.NoApplicableSizeError{Weight: "5.5", Height: "20"})

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"weight": "5.5", "height": "20"}, body.Fields)
}
