package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
)

// TCPSink пишет записи в TCP-соединение, по одной строке JSON на запись.
type TCPSink struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
}

var _ port.RecordSink = (*TCPSink)(nil)

// DialTCPSink подключается к слушателю.
func DialTCPSink(ctx context.Context, addr string) (*TCPSink, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return NewTCPSink(conn), nil
}

// NewTCPSink оборачивает готовое соединение.
func NewTCPSink(conn net.Conn) *TCPSink {
	// Encode добавляет '\n' и пишет строку одним вызовом Write.
	return &TCPSink{conn: conn, enc: json.NewEncoder(conn)}
}

// Send отправляет одну запись.
func (s *TCPSink) Send(ctx context.Context, rec *entity.FaceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// без дедлайна в контексте пишем без таймаута
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close закрывает соединение.
func (s *TCPSink) Close() error {
	return s.conn.Close()
}
