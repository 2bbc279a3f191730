package gateway

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestClassify(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")
	refreshErr := &Error{Kind: KindRefresh, Err: errors.New("boom")}

	tests := []struct {
		name       string
		resp       *http.Response
		err        error
		wantNil    bool
		wantKind   Kind
		wantStatus int
		wantBody   string
	}{
		{name: "success", resp: response(http.StatusOK, `{}`), wantNil: true},
		{name: "no content", resp: response(http.StatusNoContent, ``), wantNil: true},
		{name: "network error", err: netErr, wantKind: KindTransport},
		{name: "gateway error kept", err: refreshErr, wantKind: KindRefresh},
		{name: "unauthorized", resp: response(http.StatusUnauthorized, `{"detail":"x"}`), wantKind: KindUnauthorized, wantStatus: 401, wantBody: `{"detail":"x"}`},
		{name: "validation error", resp: response(http.StatusBadRequest, ` ["over budget"] `), wantKind: KindStatus, wantStatus: 400, wantBody: `["over budget"]`},
		{name: "server error", resp: response(http.StatusInternalServerError, ``), wantKind: KindStatus, wantStatus: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.resp, tt.err)
			if tt.wantNil {
				assert.NoError(t, err)
				return
			}

			var gwErr *Error
			require.ErrorAs(t, err, &gwErr)
			assert.Equal(t, tt.wantKind, gwErr.Kind)
			assert.Equal(t, tt.wantStatus, gwErr.StatusCode)
			assert.Equal(t, tt.wantBody, gwErr.Body)
		})
	}

	assert.ErrorIs(t, Classify(nil, netErr), netErr)
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindStatus, StatusCode: 404, Body: `{"detail":"Not found."}`}
	assert.Equal(t, `status (status 404): {"detail":"Not found."}`, err.Error())

	err = &Error{Kind: KindUnauthorized, StatusCode: 401, Err: ErrNoRefreshToken}
	assert.Equal(t, "unauthorized (status 401): "+ErrNoRefreshToken.Error(), err.Error())
}

func TestAttemptFromContext(t *testing.T) {
	assert.Equal(t, Fresh, AttemptFromContext(t.Context()))
	assert.Equal(t, Retried, AttemptFromContext(WithAttempt(t.Context(), Retried)))
	assert.Equal(t, "retried", Retried.String())
}
