package goroutine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newBufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l, &buf
}

func TestRunRecoversPanic(t *testing.T) {
	l, buf := newBufferLogger()
	rh := NewRecoveryHandler(l)

	ok := rh.Run("reminders", func() { panic("boom") })

	assert.False(t, ok)
	assert.Contains(t, buf.String(), `"task":"reminders"`)
	assert.Contains(t, buf.String(), "boom")
}

func TestRunWithoutPanic(t *testing.T) {
	l, buf := newBufferLogger()
	rh := NewRecoveryHandler(l)

	called := false
	ok := rh.Run("expiry", func() { called = true })

	assert.True(t, ok)
	assert.True(t, called)
	assert.Empty(t, buf.String())
}

func TestSafeGoWithContextRecovers(t *testing.T) {
	l, _ := newBufferLogger()
	rh := NewRecoveryHandler(l)

	done := make(chan struct{})
	rh.SafeGoWithContext(context.Background(), "outbox", func(ctx context.Context) {
		defer close(done)
		panic("dispatcher")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}
