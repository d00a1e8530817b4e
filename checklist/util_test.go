package checklist

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestCallbackList(t *testing.T) {
	callbacks := NewCallbackList[func() int]()

	a := callbacks.Add(func() int { return 1 })
	b := callbacks.Add(func() int { return 2 })
	assert.NotEqual(t, a, b)
	assert.Equal(t, len(callbacks.Get()), 2)

	callbacks.Remove(a)
	remaining := callbacks.Get()
	assert.Equal(t, len(remaining), 1)
	assert.Equal(t, remaining[0](), 2)

	// removing twice is a no-op
	callbacks.Remove(a)
	assert.Equal(t, len(callbacks.Get()), 1)
}

func TestHandleError(t *testing.T) {
	var handled error
	r := HandleError(func() {
		panic(errors.New("observer failed"))
	}, func(err error) {
		handled = err
	})
	assert.NotEqual(t, r, nil)
	assert.Equal(t, handled.Error(), "observer failed")

	r = HandleError(func() {})
	assert.Equal(t, r, nil)
}

func TestReconnect(t *testing.T) {
	reconnect := NewReconnect(0)
	select {
	case <-reconnect.After():
	case <-time.After(time.Second):
		t.Fatal("expected immediate reconnect")
	}
}

func TestTimeScheduler(t *testing.T) {
	scheduler := NewTimeScheduler()

	ran := make(chan struct{})
	scheduler.Schedule(time.Millisecond, func() {
		close(ran)
	})
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}

	task := scheduler.Schedule(time.Hour, func() {
		t.Error("canceled task ran")
	})
	assert.Equal(t, task.Cancel(), true)
	assert.Equal(t, task.Cancel(), false)
}
