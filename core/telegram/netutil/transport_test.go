package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTrip struct {
	errs   []error
	calls  int
	bodies []string
}

func (s *scriptedTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, string(b))
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

var dialErr = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}

func TestBackoffSchedule(t *testing.T) {
	b := Backoff{Retries: 2, Step: 100 * time.Millisecond}
	assert.Equal(t, 3, b.Attempts())
	assert.Equal(t, 200*time.Millisecond, b.Delay(2))
	assert.Zero(t, b.Delay(0))
	assert.Equal(t, 1, Backoff{Retries: -1}.Attempts())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Wait(ctx, 1), context.Canceled)
}

func TestTransportRetriesTransientErrors(t *testing.T) {
	base := &scriptedTrip{errs: []error{dialErr, dialErr}}
	tr := &Transport{Base: base, Backoff: Backoff{Retries: 2}}

	req, err := http.NewRequest(http.MethodPost, "http://api.test/sendMessage", strings.NewReader("hi"))
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, base.calls)
	assert.Equal(t, []string{"hi", "hi", "hi"}, base.bodies)
}

func TestTransportGivesUp(t *testing.T) {
	base := &scriptedTrip{errs: []error{dialErr, dialErr, dialErr}}
	tr := &Transport{Base: base, Backoff: Backoff{Retries: 1}}
	req, _ := http.NewRequest(http.MethodGet, "http://api.test/getMe", nil)
	_, err := tr.RoundTrip(req)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, 2, base.calls)

	base = &scriptedTrip{errs: []error{errors.New("bad request")}}
	tr.Base = base
	_, err = tr.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, base.calls)
}

func TestTransportSendsUnreplayableBodyOnce(t *testing.T) {
	base := &scriptedTrip{errs: []error{dialErr}}
	tr := &Transport{Base: base, Backoff: Backoff{Retries: 3}}
	req, _ := http.NewRequest(http.MethodPost, "http://api.test/sendPhoto", nil)
	req.Body = io.NopCloser(strings.NewReader("blob"))
	_, err := tr.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, base.calls)
}
