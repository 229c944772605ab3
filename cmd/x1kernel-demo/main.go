// Command x1kernel-demo boots a Kernel and runs a small priority
// preemption scenario on it: a low-priority thread spins on a shared
// counter while a high-priority thread sleeps on a timer and, once it
// wakes, preempts the low-priority thread and prints what it found.
// Grounded on cmd/ublk-mem/main.go's shape: flag parsing, logger wiring,
// and a SIGINT/SIGTERM handler for a clean shutdown.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	x1kernel "github.com/kesterson/x1kernel"
	"github.com/kesterson/x1kernel/internal/logging"
	"github.com/kesterson/x1kernel/internal/sched"
	"github.com/kesterson/x1kernel/internal/timer"
)

func main() {
	var (
		verbose  = flag.Bool("v", false, "Verbose output")
		tickHz   = flag.Int("tick-hz", 100, "Periodic tick frequency in Hz")
		heapSize = flag.Int("heap-size", 1<<20, "Heap region size in bytes")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := x1kernel.DefaultConfig()
	cfg.TickFrequencyHz = *tickHz
	cfg.HeapSize = *heapSize
	cfg.Logger = logger

	k, err := x1kernel.New(cfg)
	if err != nil {
		logger.Error("failed to build kernel", "error", err)
		os.Exit(1)
	}

	counter := 0
	mx := k.NewMutex()

	_, err = k.CreateThread(func(any) {
		for {
			mx.Lock()
			counter++
			mx.Unlock()
			k.Yield()
		}
	}, nil, "spinner", 16384, 1)
	if err != nil {
		logger.Error("failed to create spinner thread", "error", err)
		os.Exit(1)
	}

	var reporter *sched.Thread
	var fired bool
	reporter, err = k.CreateThread(func(any) {
		tm := timer.New(func(any) {
			fired = true
			k.Wakeup(reporter)
		}, nil)
		k.ScheduleTimer(tm, k.Now()+uint32(*tickHz)) // ~1 second out
		for !fired {
			k.Sleep()
		}
		mx.Lock()
		seen := counter
		mx.Unlock()
		fmt.Printf("high-priority thread woke; spinner had reached %d\n", seen)
	}, nil, "reporter", 16384, 10)
	if err != nil {
		logger.Error("failed to create reporter thread", "error", err)
		os.Exit(1)
	}

	logger.Info("starting kernel", "tick_hz", *tickHz, "heap_size", *heapSize)
	go k.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-time.After(3 * time.Second):
		logger.Info("demo window elapsed")
	}

	k.Stop()
	snap := k.MetricsSnapshot()
	fmt.Printf("ticks=%d context_switches=%d threads_created=%d allocations=%d\n",
		snap.Ticks, snap.ContextSwitches, snap.ThreadsCreated, snap.Allocations)
}
