package automation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (f *fakeChecker) CheckAging(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.n, f.err
}

func (f *fakeChecker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fixedNow() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }

func TestRunOnceRecordsStatus(t *testing.T) {
	fc := &fakeChecker{n: 2}
	s := NewScheduler(fc, time.Hour, fixedNow)

	st := s.RunOnce(context.Background())
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, 2, st.LastEmitted)
	assert.Equal(t, "2024-03-15T12:00:00Z", st.LastRunAt)
	assert.Empty(t, st.LastError)

	fc.err = errors.New("database is locked")
	fc.n = 0
	st = s.RunOnce(context.Background())
	assert.Equal(t, 2, st.Runs)
	assert.Equal(t, "database is locked", st.LastError)
	assert.Equal(t, st, s.Status())
}

func TestRunStopsWithContext(t *testing.T) {
	fc := &fakeChecker{}
	s := NewScheduler(fc, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return fc.Calls() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestAgingHandler(t *testing.T) {
	fc := &fakeChecker{n: 1}
	s := NewScheduler(fc, time.Hour, fixedNow)
	h := AgingHandler(s)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/automation/aging", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runs":0`)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/automation/aging", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lastEmitted":1`)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodDelete, "/api/automation/aging", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
