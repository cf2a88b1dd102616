package websocket

import (
	"fmt"

	"github.com/gorilla/websocket"
)

const maxMessageSize = 64 * 1024

// frameConn carries one protocol line per text frame.
type frameConn struct {
	socket *websocket.Conn
}

func newFrameConn(socket *websocket.Conn) *frameConn {
	socket.SetReadLimit(maxMessageSize)

	return &frameConn{socket: socket}
}

func (that *frameConn) ReadLine() ([]byte, error) {
	_, data, err := that.socket.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	return data, nil
}

func (that *frameConn) WriteLine(line []byte) error {
	if err := that.socket.WriteMessage(websocket.TextMessage, line); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *frameConn) Close() error {
	return that.socket.Close()
}

func (that *frameConn) RemoteAddr() string {
	return that.socket.RemoteAddr().String()
}
