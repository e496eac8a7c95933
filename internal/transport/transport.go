package transport

import (
	"net"
	"time"
)

// Transport abstracts the framed, encrypted byte stream underlying a
// connection. Everything above this package (session, dispatch,
// handlers) depends only on this interface, never on net.Conn directly,
// so a different socket/crypto layer can be swapped in without touching
// game logic.
type Transport interface {
	// ReadPacket blocks until one decrypted packet payload is available.
	ReadPacket() ([]byte, error)
	// WritePacket encrypts and frames data, then writes it.
	WritePacket(data []byte) error
	// RemoteAddr returns the peer address (used for IP ejection checks).
	RemoteAddr() net.Addr
	Close() error
}

// TCPTransport is a minimal concrete Transport over a net.Conn.
type TCPTransport struct {
	conn   net.Conn
	cipher Cipher
}

// NewTCPTransport wraps conn. A nil cipher defaults to NullCipher.
func NewTCPTransport(conn net.Conn, cipher Cipher) *TCPTransport {
	if cipher == nil {
		cipher = NullCipher{}
	}
	return &TCPTransport{conn: conn, cipher: cipher}
}

func (t *TCPTransport) ReadPacket() ([]byte, error) {
	payload, err := ReadFrame(t.conn)
	if err != nil {
		return nil, err
	}
	return t.cipher.Decrypt(payload), nil
}

func (t *TCPTransport) WritePacket(data []byte) error {
	encrypted := make([]byte, len(data))
	copy(encrypted, data)
	t.cipher.Encrypt(encrypted)
	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return WriteFrame(t.conn, encrypted)
}

func (t *TCPTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *TCPTransport) Close() error { return t.conn.Close() }
