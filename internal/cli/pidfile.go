package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"facestream/internal/log"
)

// acquirePidFile пишет pid процесса в path. Возвращает функцию удаления файла.
func acquirePidFile(path string) (func(), error) {
	if isAlreadyRunning(path) {
		return nil, fmt.Errorf("already running, see %s", path)
	}
	if err := writePidFile(path); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() { os.Remove(path) }, nil
}

func isAlreadyRunning(path string) bool {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		log.Warn("can not read pid file", "path", path, "error", err)
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.Warn("invalid existing pid file", "path", path, "error", err)
		return false
	}
	if pid == os.Getpid() {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
