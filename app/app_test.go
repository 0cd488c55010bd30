package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordingHook(name string, events *[]string, startErr error) Hook {
	return Hook{
		Name: name,
		OnStart: func(context.Context) error {
			*events = append(*events, "start "+name)
			return startErr
		},
		OnStop: func(context.Context) error {
			*events = append(*events, "stop "+name)
			return nil
		},
	}
}

func TestRunStopsInReverseOrder(t *testing.T) {
	var events []string
	a := New("pricer", discardLogger(),
		WithHook(recordingHook("metrics", &events, nil), recordingHook("watcher", &events, nil)),
		WithCleanup(func() { events = append(events, "cleanup") }),
		WithShutdownTimeout(time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	want := []string{"start metrics", "start watcher", "stop watcher", "stop metrics", "cleanup"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %v, want %v", events, want)
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	var events []string
	boom := errors.New("port in use")
	a := New("pricer", discardLogger(),
		WithHook(recordingHook("cache", &events, nil), recordingHook("metrics", &events, boom), recordingHook("never", &events, nil)),
		WithCleanup(func() { events = append(events, "cleanup") }),
	)

	if err := a.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	want := []string{"start cache", "start metrics", "stop cache", "cleanup"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %v, want %v", events, want)
	}
}
