package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsMatchSentinelByCode(t *testing.T) {
	cause := errors.New("row locked")
	err := fmt.Errorf("reserve p-1: %w", Wrap(ErrInsufficientStock, cause, "only 2 left"))

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrInsufficientBalance)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "insufficient_stock", CodeOf(err))
}

func TestKindOfUnknownErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, ErrInternal.Code, CodeOf(err))
}

func TestFromCodeRoundTrip(t *testing.T) {
	for _, e := range []*Error{ErrUserNotFound, ErrProductNotFound, ErrInsufficientBalance, ErrUnavailable} {
		got, ok := FromCode(e.Code)
		assert.True(t, ok, e.Code)
		assert.Same(t, e, got)
	}
	_, ok := FromCode("nope")
	assert.False(t, ok)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidRequest: http.StatusBadRequest,
		KindNotFound:       http.StatusNotFound,
		KindConflict:       http.StatusConflict,
		KindUnavailable:    http.StatusServiceUnavailable,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind))
		assert.Equal(t, kind, KindForStatus(status))
	}
	assert.Equal(t, KindUnavailable, KindForStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindUnavailable, KindForStatus(http.StatusBadGateway))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "user not found", ErrUserNotFound.Error())
	assert.Equal(t, "no profile for u-1", New(ErrUserNotFound, "no profile for u-1").Error())
	assert.Equal(t, "downstream unavailable: dial tcp", Wrap(ErrUnavailable, errors.New("dial tcp"), "").Error())
}

func TestBodyRoundTrip(t *testing.T) {
	status, body := ToBody(New(ErrInsufficientStock, "product p-1: requested 3, available 2"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "insufficient_stock", body.Error.Code)

	back := FromBody(status, body)
	assert.ErrorIs(t, back, ErrInsufficientStock)
	assert.EqualError(t, back, "product p-1: requested 3, available 2")
}

func TestToBodyHidesInternalCause(t *testing.T) {
	status, body := ToBody(Wrap(ErrInternal, errors.New("pq: password authentication failed"), "persist order"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "persist order", body.Error.Message)

	status, body = ToBody(errors.New("raw"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", body.Error.Code)
}

func TestFromBodyUnknownCode(t *testing.T) {
	err := FromBody(http.StatusBadGateway, Body{})
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, "http_502", CodeOf(err))

	err = FromBody(http.StatusNotFound, Body{Error: BodyError{Code: "route_not_found"}})
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.NotErrorIs(t, err, ErrProductNotFound)
}
