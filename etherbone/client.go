package etherbone

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/soclab/membist/csr"
)

const (
	// DefaultAddress is where the reference bridge listens.
	DefaultAddress = "192.168.1.50:20000"

	// DefaultTimeout bounds each request on the wire.
	DefaultTimeout = 2 * time.Second

	replyBufLen = 512
)

// Client is a register bus backed by an Etherbone bridge. It keeps a
// single request in flight; writes are posted and only reads observe the
// device. Client implements csr.Bus.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

var _ csr.Bus = (*Client)(nil)

// ClientBuilder assembles and connects a Client.
type ClientBuilder struct {
	addr    string
	timeout time.Duration
}

// WithAddress sets the bridge's UDP address. Defaults to DefaultAddress.
func (b ClientBuilder) WithAddress(addr string) ClientBuilder {
	b.addr = addr
	return b
}

// WithTimeout sets the per-request deadline. Defaults to DefaultTimeout.
func (b ClientBuilder) WithTimeout(d time.Duration) ClientBuilder {
	b.timeout = d
	return b
}

// Build opens the UDP socket towards the bridge.
func (b ClientBuilder) Build() (*Client, error) {
	addr := b.addr
	if addr == "" {
		addr = DefaultAddress
	}

	timeout := b.timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("etherbone: dial %s: %w", addr, err)
	}

	return &Client{conn: conn, timeout: timeout}, nil
}

// Probe checks that an Etherbone bridge answers on the other side.
func (c *Client) Probe() error {
	reply, err := c.transact(probePacket(), true)
	if err != nil {
		return fmt.Errorf("etherbone: probe: %w", err)
	}
	if !isProbeReply(reply) {
		return fmt.Errorf("etherbone: probe: %s is not an etherbone bridge",
			c.conn.RemoteAddr())
	}
	return nil
}

// Read32 fetches one CSR word.
func (c *Client) Read32(addr uint32) (uint32, error) {
	reply, err := c.transact(readPacket(addr), true)
	if err != nil {
		return 0, fmt.Errorf("etherbone: read %#08x: %w", addr, err)
	}

	v, err := parseReadReply(reply)
	if err != nil {
		return 0, fmt.Errorf("etherbone: read %#08x: %w", addr, err)
	}
	return v, nil
}

// Write32 posts one CSR word. The bridge sends no acknowledgement, so a
// nil return only means the datagram left this host.
func (c *Client) Write32(addr uint32, value uint32) error {
	if _, err := c.transact(writePacket(addr, value), false); err != nil {
		return fmt.Errorf("etherbone: write %#08x: %w", addr, err)
	}
	return nil
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) transact(pkt []byte, wantReply bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(pkt); err != nil {
		return nil, err
	}
	if !wantReply {
		return nil, nil
	}

	buf := make([]byte, replyBufLen)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
