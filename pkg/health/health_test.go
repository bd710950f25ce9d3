package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(msg string) Check {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

type body struct {
	Status string
	Checks map[string]string
}

func serve(t *testing.T, h http.Handler) (int, body) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	b := body{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			b.Status = v
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				b.Checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return w.Code, b
}

func pollN(h *Health, p Probe, n int) {
	for range n {
		for _, c := range h.checks[p] {
			c.poll(context.Background(), h.opts)
		}
	}
}

func TestLive_FailureThreshold(t *testing.T) {
	h := New(Options{})
	h.Register(Liveness, "db", time.Second, failing("connection refused"))

	pollN(h, Liveness, 2)
	code, _ := serve(t, h.LiveHandler())
	assert.Equal(t, http.StatusOK, code, "two failures stay below the threshold")

	pollN(h, Liveness, 1)
	code, b := serve(t, h.LiveHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", b.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, b.Checks)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		ready  bool
		checks map[string]Check
		code   int
		failed []string
	}{
		{
			name:  "ready and passing",
			ready: true,
			checks: map[string]Check{
				"postgres": passing,
			},
			code: http.StatusOK,
		},
		{
			name:   "gate closed",
			checks: map[string]Check{"postgres": passing},
			code:   http.StatusServiceUnavailable,
			failed: []string{"_readiness"},
		},
		{
			name:  "one check failing",
			ready: true,
			checks: map[string]Check{
				"postgres": passing,
				"kafka":    failing("no brokers"),
			},
			code:   http.StatusServiceUnavailable,
			failed: []string{"kafka"},
		},
		{
			name:  "no checks",
			ready: true,
			code:  http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Options{FailureThreshold: 1})
			for name, fn := range tt.checks {
				h.Register(Readiness, name, time.Second, fn)
			}
			h.SetReady(tt.ready)
			pollN(h, Readiness, 1)

			code, b := serve(t, h.ReadyHandler())
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.code == http.StatusOK, h.Ready())
			for _, name := range tt.failed {
				assert.Contains(t, b.Checks, name)
			}
			assert.Len(t, b.Checks, len(tt.failed))
		})
	}
}

func TestCheck_Recovers(t *testing.T) {
	down := true
	h := New(Options{SuccessThreshold: 2})
	h.Register(Liveness, "flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	c := h.checks[Liveness][0]

	pollN(h, Liveness, 3)
	assert.False(t, c.healthy.Load())

	down = false
	pollN(h, Liveness, 1)
	assert.False(t, c.healthy.Load(), "one success is below the threshold")
	pollN(h, Liveness, 1)
	assert.True(t, c.healthy.Load())
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := New(Options{FailureThreshold: 1})
	var (
		mu    sync.Mutex
		polls int
	)
	h.Register(Readiness, "counter", time.Second, func(context.Context) error {
		mu.Lock()
		polls++
		mu.Unlock()
		return nil
	})
	h.Register(Liveness, "failing", time.Second, failing("boom"))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.Ready()
				h.LiveHandler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return polls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	assert.NoError(t, PingCheck(pinger{})(context.Background()))
	assert.ErrorContains(t, PingCheck(pinger{err: errors.New("refused")})(context.Background()), "refused")

	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}
