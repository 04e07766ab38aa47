package soap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientSharesPendingCreation(t *testing.T) {
	var creates atomic.Int32
	release := make(chan struct{})
	conn := &callbackConn{result: []any{"ok"}}
	d := creatorFunc(func(context.Context, string) (Connection, error) {
		creates.Add(1)
		<-release
		return conn, nil
	})
	c := NewClient(Options{WSDL: "x", Driver: d})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Invoke[string](context.Background(), c, "ping", nil, time.Second, nil)
			if err != nil || got != "ok" {
				t.Errorf("Invoke = %q, %v", got, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := creates.Load(); n != 1 {
		t.Fatalf("created %d connections, want 1", n)
	}
}

func TestClientForgetsFailedCreation(t *testing.T) {
	var creates atomic.Int32
	d := creatorFunc(func(context.Context, string) (Connection, error) {
		if creates.Add(1) == 1 {
			return nil, errors.New("wsdl fetch failed")
		}
		return &callbackConn{result: []any{"ok"}}, nil
	})
	c := NewClient(Options{WSDL: "x", Driver: d})

	if _, err := c.Conn(context.Background()); err == nil {
		t.Fatal("first creation should fail")
	}
	if _, err := c.Conn(context.Background()); err != nil {
		t.Fatalf("second creation: %v", err)
	}
	if _, err := c.Conn(context.Background()); err != nil || creates.Load() != 2 {
		t.Fatalf("ready connection not reused, creates=%d err=%v", creates.Load(), err)
	}
}

func TestClientKeepsConnectionAfterFailedCall(t *testing.T) {
	var creates atomic.Int32
	conn := &callbackConn{err: errors.New("boom")}
	d := creatorFunc(func(context.Context, string) (Connection, error) {
		creates.Add(1)
		return conn, nil
	})
	c := NewClient(Options{WSDL: "x", Driver: d})
	for i := 0; i < 3; i++ {
		if _, err := Invoke[string](context.Background(), c, "ping", nil, time.Second, nil); err == nil {
			t.Fatal("expected call error")
		}
	}
	if creates.Load() != 1 {
		t.Fatalf("connection recreated %d times after call failures", creates.Load())
	}
}

func TestClientCallerCancelDoesNotAbortSharedCreation(t *testing.T) {
	release := make(chan struct{})
	d := creatorFunc(func(ctx context.Context, _ string) (Connection, error) {
		select {
		case <-release:
			return &callbackConn{result: []any{"ok"}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c := NewClient(Options{WSDL: "x", Driver: d})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Conn(ctx)
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}

	close(release)
	if _, err := c.Conn(context.Background()); err != nil {
		t.Fatalf("shared creation was aborted by one caller: %v", err)
	}
}
