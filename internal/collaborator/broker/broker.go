// Package broker is a concrete collab.BrokerServer/collab.BrokerClient
// pair: a length-prefixed JSON message fabric run by whichever node
// currently holds MESSAGE_BROKER, with every other node holding a
// client connected to it (SPEC_FULL §6).
package broker

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/edgemesh/clustercore/pkg/cluster/collab"
	"github.com/edgemesh/clustercore/pkg/cluster/types"
)

// Envelope is the message exchanged between broker and clients.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func writeFramed(w *bufio.Writer, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Flush()
}

func readFramed(r *bufio.Reader) (Envelope, error) {
	var size [4]byte
	if _, err := readFull(r, size[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(size[:])
	buf := make([]byte, n)
	if _, err := readFull(r, buf); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// Server is the broker endpoint run by the MESSAGE_BROKER node. It
// accepts client connections and fans every received envelope out to
// every other connected client.
type Server struct {
	addr   string
	logger types.Logger

	mu       sync.Mutex
	clients  map[net.Conn]*bufio.Writer
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a broker server that will listen on addr once
// Started.
func NewServer(addr string, logger types.Logger) *Server {
	return &Server{
		addr:    addr,
		logger:  logger.WithFields(types.Fields{"component": "broker-server"}),
		clients: make(map[net.Conn]*bufio.Writer),
	}
}

// Start binds the listener and begins accepting clients.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("broker: listen %s: %w", s.addr, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every connected client.
func (s *Server) Stop(ctx context.Context) error {
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[net.Conn]*bufio.Writer)
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.clients[conn] = bufio.NewWriter(conn)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		env, err := readFramed(r)
		if err != nil {
			return
		}
		s.fanOut(conn, env)
	}
}

func (s *Server) fanOut(from net.Conn, env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, w := range s.clients {
		if conn == from {
			continue
		}
		if err := writeFramed(w, env); err != nil {
			s.logger.Errorf("fanning out to client: %v", err)
		}
	}
}

var _ collab.BrokerServer = (*Server)(nil)

// Client is the broker endpoint run by every non-broker node.
type Client struct {
	logger types.Logger

	mu   sync.Mutex
	conn net.Conn
	w    *bufio.Writer
}

// NewClient builds an unconnected broker client.
func NewClient(logger types.Logger) *Client {
	return &Client{logger: logger.WithFields(types.Fields{"component": "broker-client"})}
}

// Start dials the current broker at brokerAddress, replacing any
// connection already held. Safe to call repeatedly, since the role
// controller (re)dials on every transition that leaves this node
// without MESSAGE_BROKER, not only on the edge into that state.
func (c *Client) Start(ctx context.Context, brokerAddress string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", brokerAddress)
	if err != nil {
		return fmt.Errorf("broker client: dial %s: %w", brokerAddress, err)
	}
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.w = bufio.NewWriter(conn)
	c.mu.Unlock()
	return nil
}

// Stop closes the connection to the broker.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.w = nil
	return err
}

// Publish sends an envelope to the broker. It is not part of the
// collab.BrokerClient contract — it is the editing server's handle
// onto this client once started.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return fmt.Errorf("broker client: not connected")
	}
	return writeFramed(c.w, Envelope{Topic: topic, Payload: payload})
}

var _ collab.BrokerClient = (*Client)(nil)
