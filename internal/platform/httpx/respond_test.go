package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/scanix-pos/scanix/internal/shared"
)

type bindTarget struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

func TestBindValidatesStruct(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku":"","quantity":0}`))
	var target bindTarget
	err := Bind(req, validator.New(), &target)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "bindTarget.SKU")
	require.Contains(t, err.Error(), "bindTarget.Quantity")
}

func TestBindRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku":`))
	var target bindTarget
	require.ErrorIs(t, Bind(req, validator.New(), &target), shared.ErrValidation)
}

func TestRespondErrorMapsCategories(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("bad rules: %w", shared.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("sku: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("stock: %w", shared.ErrConflict), http.StatusConflict},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, nil, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.Equal(t, tc.status, problem.Status)
		if tc.status == http.StatusInternalServerError {
			require.Empty(t, problem.Detail)
		} else {
			require.Equal(t, tc.err.Error(), problem.Detail)
		}
	}
}
