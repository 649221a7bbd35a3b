package afip

// soap_test.go
// Transport policy: exactly one silent retry on network errors, none once a
// response was received, breaker fast-fails when AFIP keeps dying.

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyTransport fails the first n attempts, then delegates to ok.
type flakyTransport struct {
	failures int
	attempts int
	ok       http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	if f.ok == nil {
		return nil, errors.New("connection reset by peer")
	}
	return f.ok.RoundTrip(r)
}

type staticTransport struct{ body string }

func (s staticTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     http.Header{},
	}, nil
}

func newSOAPClientWithTransport(rt http.RoundTripper) *soapClient {
	return &soapClient{
		http:    &http.Client{Transport: rt},
		breaker: NewBreaker(0, 0, 0),
	}
}

func TestSOAPPost_ReintentaUnaVez(t *testing.T) {
	rt := &flakyTransport{failures: 1, ok: staticTransport{body: "<ok/>"}}
	c := newSOAPClientWithTransport(rt)

	body, err := c.post(context.Background(), "http://afip.test/ws", "", []byte("<req/>"))

	require.NoError(t, err)
	assert.Equal(t, "<ok/>", string(body))
	assert.Equal(t, 2, rt.attempts)
}

func TestSOAPPost_DosFallosSurgeNetworkFailure(t *testing.T) {
	rt := &flakyTransport{failures: 10}
	c := newSOAPClientWithTransport(rt)

	_, err := c.post(context.Background(), "http://afip.test/ws", "", []byte("<req/>"))

	require.Error(t, err)
	assert.Equal(t, KindNetworkFailure, ErrorKind(err))
	assert.Equal(t, 2, rt.attempts, "exactly one silent retry, then surface")
}

func TestSOAPPost_SinReintentoTrasCancelacion(t *testing.T) {
	rt := &flakyTransport{failures: 10}
	c := newSOAPClientWithTransport(rt)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.post(ctx, "http://afip.test/ws", "", []byte("<req/>"))

	require.Error(t, err)
	assert.Equal(t, KindNetworkFailure, ErrorKind(err))
	assert.LessOrEqual(t, rt.attempts, 1, "a dead context is never retried")
}

func TestSOAPPost_CircuitoAbierto(t *testing.T) {
	c := newSOAPClientWithTransport(&flakyTransport{failures: 1000})
	c.breaker = NewBreaker(2, 0, time.Hour)

	for i := 0; i < 2; i++ {
		_, _ = c.post(context.Background(), "http://afip.test/ws", "", nil)
	}
	require.Equal(t, BreakerOpen, c.breaker.State())

	_, err := c.post(context.Background(), "http://afip.test/ws", "", nil)
	require.Error(t, err)
	assert.Equal(t, KindNetworkFailure, ErrorKind(err))
	assert.Contains(t, err.Error(), "circuito abierto")
}
