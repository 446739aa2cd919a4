package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"

	"facestream/internal/domain/entity"
	"facestream/internal/log"
)

// MaxLineSize предел длины одной строки.
const MaxLineSize = 1 << 20

// RecordHandler получатель разобранных записей.
type RecordHandler interface {
	Connected(remote string)
	Ingest(ctx context.Context, rec *entity.FaceRecord)
	Rejected(remote string, err error)
	Disconnected(remote string, err error)
}

// Listener принимает стримеры по одному и читает строки записей.
type Listener struct {
	ln      net.Listener
	handler RecordHandler
}

// Listen открывает TCP-порт.
func Listen(addr string, handler RecordHandler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, handler: handler}, nil
}

// Addr фактический адрес (полезно при порте 0).
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve принимает соединения до отмены контекста.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	log.Info("listening for streamer", "addr", l.ln.Addr().String())
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		l.handle(ctx, conn)
	}
}

// Close останавливает приём. Повторный вызов не ошибка.
func (l *Listener) Close() error {
	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	l.handler.Connected(remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	for scanner.Scan() {
		rec, err := DecodeRecord(scanner.Bytes())
		if errors.Is(err, ErrEmptyLine) {
			continue
		}
		if err != nil {
			l.handler.Rejected(remote, err)
			continue
		}
		l.handler.Ingest(ctx, rec)
	}

	err := scanner.Err()
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		err = nil
	}
	l.handler.Disconnected(remote, err)
}
