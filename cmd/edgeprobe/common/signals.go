package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/leptonai/edgeprobe/pkg/log"
)

var handledSignals = []os.Signal{
	unix.SIGTERM,
	unix.SIGINT,
	unix.SIGUSR1,
	unix.SIGPIPE,
}

// HandleSignals cancels ctx on SIGTERM or SIGINT, after calling onStop,
// and dumps goroutine stacks on SIGUSR1. The returned channel is closed
// once a stop signal was handled.
func HandleSignals(cancel context.CancelFunc, onStop func()) chan struct{} {
	signals := make(chan os.Signal, 16)
	signal.Notify(signals, handledSignals...)

	done := make(chan struct{})
	go func() {
		for s := range signals {
			// no logging on SIGPIPE, it may arrive in bursts
			if s == unix.SIGPIPE {
				continue
			}

			log.Logger.Debugw("received signal", "signal", s)
			switch s {
			case unix.SIGUSR1:
				dumpStacks(true)
			default:
				signal.Stop(signals)
				if onStop != nil {
					onStop()
				}
				cancel()
				close(done)
				return
			}
		}
	}()
	return done
}

func dumpStacks(writeToFile bool) {
	var (
		buf       []byte
		stackSize int
	)
	bufferLen := 16384
	for stackSize == len(buf) {
		buf = make([]byte, bufferLen)
		stackSize = runtime.Stack(buf, true)
		bufferLen *= 2
	}
	buf = buf[:stackSize]
	log.Logger.Debugf("=== BEGIN goroutine stack dump ===\n%s\n=== END goroutine stack dump ===", buf)

	if writeToFile {
		name := filepath.Join(os.TempDir(), fmt.Sprintf("edgeprobe.%d.stacks.log", os.Getpid()))
		f, err := os.Create(name)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.Write(buf)
		log.Logger.Infow("goroutine stack dump written", "file", name)
	}
}
