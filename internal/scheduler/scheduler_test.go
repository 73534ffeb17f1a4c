package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iptvgw/gateway/internal/config"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		cron    string
		wantErr bool
	}{
		{name: "every minute", cron: "* * * * *", wantErr: false},
		{name: "daily at 9am", cron: "0 9 * * *", wantErr: false},
		{name: "weekdays hourly", cron: "0 * * * 1-5", wantErr: false},
		{name: "too few fields", cron: "0 9 * *", wantErr: true},
		{name: "garbage", cron: "not a cron", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]config.ScheduleConfig{{Name: tt.name, Cron: tt.cron}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compile(%q) error = %v, wantErr %v", tt.cron, err, tt.wantErr)
			}
		})
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	jobs, err := Compile([]config.ScheduleConfig{{Name: "every-minute", Cron: "* * * * *", Targets: []string{"t1"}}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var mu sync.Mutex
	var calls [][]string
	ran := make(chan struct{}, 1)
	run := func(ctx context.Context, targets []string) error {
		mu.Lock()
		calls = append(calls, targets)
		mu.Unlock()
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}

	s := New(jobs, run)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// "* * * * *" fires on the minute boundary; cancel promptly so the
	// test doesn't depend on wall-clock alignment.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler.Run did not return after cancellation")
	}
}

func TestSchedulerRejectsDoubleRun(t *testing.T) {
	jobs, err := Compile([]config.ScheduleConfig{{Name: "j", Cron: "0 0 1 1 *"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s := New(jobs, func(ctx context.Context, targets []string) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		t.Fatal("expected scheduler to be marked running")
	}
}
