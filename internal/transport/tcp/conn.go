package tcp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/rocketscienceinc/tictactoe-server/internal/apperror"
)

const maxLineSize = 64 * 1024

// lineConn frames a TCP stream as newline delimited lines.
type lineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writer  *bufio.Writer
}

func newLineConn(conn net.Conn) *lineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	return &lineConn{
		conn:    conn,
		scanner: scanner,
		writer:  bufio.NewWriter(conn),
	}
}

// ReadLine skips blank lines.
func (that *lineConn) ReadLine() ([]byte, error) {
	for that.scanner.Scan() {
		line := bytes.TrimSpace(that.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		return append([]byte(nil), line...), nil
	}

	err := that.scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		return nil, fmt.Errorf("%w: line exceeds %d bytes", apperror.ErrProtocol, maxLineSize)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read line: %w", err)
	}

	return nil, io.EOF
}

// WriteLine must not be called concurrently.
func (that *lineConn) WriteLine(line []byte) error {
	if _, err := that.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}

	if err := that.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}

	if err := that.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush line: %w", err)
	}

	return nil
}

func (that *lineConn) Close() error {
	return that.conn.Close()
}

func (that *lineConn) RemoteAddr() string {
	return that.conn.RemoteAddr().String()
}
