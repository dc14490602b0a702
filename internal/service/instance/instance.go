package instance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/buzzer/internal/logger"
)

// ErrAlreadyRunning is returned when another process with the same executable is alive.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Lister enumerates running processes (ps.Processes by default).
type Lister func() ([]ps.Process, error)

// Guard detects concurrent instances of one executable.
type Guard struct {
	list       Lister
	executable string
	pid        int
}

// NewGuard returns a guard for the current executable and process.
func NewGuard() *Guard {
	executable, err := os.Executable()
	if err != nil {
		executable = os.Args[0]
	}

	return &Guard{
		list:       ps.Processes,
		executable: filepath.Base(executable),
		pid:        os.Getpid(),
	}
}

// Check fails with ErrAlreadyRunning if any other process runs the same executable.
func (g *Guard) Check(ctx context.Context) error {
	processList, err := g.list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == g.pid {
			continue
		}

		if process.Executable() != g.executable {
			continue
		}

		logger.WarnKV(ctx, "Found running instance", "pid", process.Pid(), "executable", g.executable)

		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, process.Pid())
	}

	return nil
}
