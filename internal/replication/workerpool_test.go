package replication

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsJobs(t *testing.T) {
	pool := MakeWorkerPool("test", 4)
	var done int32
	for i := 0; i < 16; i++ {
		for !pool.Schedule(func() { atomic.AddInt32(&done, 1) }) {
			time.Sleep(time.Millisecond)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&done) != 16 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of 16 jobs ran", atomic.LoadInt32(&done))
		}
		time.Sleep(time.Millisecond)
	}
	pool.Stop()
}

func TestWorkerPoolFull(t *testing.T) {
	pool := MakeWorkerPool("test", 2)
	block := make(chan struct{})
	defer close(block)

	// 2 workers busy plus 2 queued jobs saturate the pool
	scheduled := 0
	for i := 0; i < 4; i++ {
		if pool.Schedule(func() { <-block }) {
			scheduled++
		} else {
			// a worker may drain the queue between iterations; retry
			time.Sleep(time.Millisecond)
			i--
		}
	}
	if scheduled != 4 {
		t.Fatalf("scheduled %d jobs, want 4", scheduled)
	}

	deadline := time.Now().Add(time.Second)
	for !pool.IsFull() {
		if time.Now().After(deadline) {
			t.Fatal("pool never reported full")
		}
		time.Sleep(time.Millisecond)
	}
	if pool.Schedule(func() {}) {
		t.Fatal("Schedule succeeded on a full pool")
	}
}
