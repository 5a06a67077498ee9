package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/koseken/game-trading/pkg/errors"
)

type reviewBody struct {
	Rating  int      `json:"rating" validate:"required,min=1,max=5"`
	Comment string   `json:"comment" validate:"max=10"`
	Tags    []string `json:"tags" validate:"omitempty,max=2"`
}

func decode(t *testing.T, raw string) (reviewBody, *pkgerrors.Error) {
	t.Helper()
	var body reviewBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/api/v1/reviews", strings.NewReader(raw)), &body)
	return body, pkgerrors.As(err)
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	body, err := decode(t, `{"rating":4,"comment":"fast"}`)
	require.Nil(t, err)
	require.Equal(t, 4, body.Rating)
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"rating":3,"extra":true}`,
		"trailing data": `{"rating":3}{"rating":4}`,
		"empty":         ``,
		"syntax":        `{"rating":`,
		"wrong type":    `{"rating":"five"}`,
		"too large":     `{"comment":"` + strings.Repeat("x", MaxBodyBytes) + `"}`,
	}
	for name, raw := range cases {
		_, err := decode(t, raw)
		require.NotNil(t, err, name)
		require.Equal(t, pkgerrors.CodeValidation, err.Code(), name)
	}

	_, err := decode(t, `{"rating":3,"extra":true}`)
	require.Equal(t, map[string]string{"extra": "is not a known field"}, err.Details())
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	_, err := decode(t, `{"rating":9,"comment":"far too long here","tags":["a","b","c"]}`)
	require.NotNil(t, err)
	require.Equal(t, map[string]string{
		"rating":  "must be at most 5",
		"comment": "must have at most 10 characters or items",
		"tags":    "must have at most 2 characters or items",
	}, err.Details())
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3", nil)
	got, err := ParseQueryInt(req, "page", 1, 1, 50)
	require.NoError(t, err)
	require.Equal(t, 3, got)

	got, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "page", 1, 1, 50)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?page=99", nil), "page", 1, 1, 50)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseQueryInt64(t *testing.T) {
	got, err := ParseQueryInt64(httptest.NewRequest(http.MethodGet, "/?after_seq=12", nil), "after_seq", 0)
	require.NoError(t, err)
	require.EqualValues(t, 12, got)

	_, err = ParseQueryInt64(httptest.NewRequest(http.MethodGet, "/?after_seq=-1", nil), "after_seq", 0)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseQueryUUID(t *testing.T) {
	got, err := ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/", nil), "category_id")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = ParseQueryUUID(httptest.NewRequest(http.MethodGet, "/?category_id=nope", nil), "category_id")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseURLParamUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("transactionID", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParseURLParamUUID(req, "transactionID")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseURLParamUUID(req, "listingID")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "swo", SanitizeString("  sword  ", 3))
	require.Equal(t, "dragon sword", SanitizeString("dragon \t\n sword\x00", 0))
	require.Equal(t, "魔剣", SanitizeString(" 魔剣ブレード ", 2))
	require.Equal(t, "a", SanitizeString("a  b", 2))
}
