package vision

import (
	"bytes"
	"os/exec"
	"sync"
)

// stderrLimit сколько последних байт stderr дочернего процесса держим для ошибок.
const stderrLimit = 16 * 1024

// tailBuffer хранит хвост вывода процесса. Пишет горутина exec, читаем мы.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if extra := b.buf.Len() - stderrLimit; extra > 0 {
		b.buf.Next(extra)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// safeCommand команда, чей stderr сохраняется, чтобы не терять логи упавшего процесса.
type safeCommand struct {
	*exec.Cmd
	stderr *tailBuffer
}

func newSafeCommand(name string, args ...string) *safeCommand {
	cmd := exec.Command(name, args...)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	return &safeCommand{Cmd: cmd, stderr: stderr}
}

// logs stderr процесса, пустая строка если его нет.
func (c *safeCommand) logs() string {
	if c == nil {
		return ""
	}
	return c.stderr.String()
}
