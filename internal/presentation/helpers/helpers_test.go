package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidOrder, http.StatusBadRequest},
		{fmt.Errorf("%w: x", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrOrderNotFound, http.StatusNotFound},
		{domain.ErrPaymentNotFound, http.StatusNotFound},
		{domain.ErrInsufficientPayment, http.StatusUnprocessableEntity},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrOrderNotPayable, http.StatusConflict},
		{domain.ErrAlreadyPaid, http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("%w: received 1.00, due 13.00", domain.ErrInsufficientPayment))
	assert.True(t, strings.Contains(rec.Body.String(), "due 13.00"))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	assert.NoError(t, DecodeJSON(strings.NewReader(`{"a":1}`), &v))
	assert.Error(t, DecodeJSON(strings.NewReader(`{"a":1,"b":2}`), &v))
}
