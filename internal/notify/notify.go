package notify

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
)

const (
	RegisterMessageType        = "register"
	ChapterResolvedMessageType = "chapter.resolved"
)

// RegisterMessage is sent by a client to subscribe to resolution
// pushes.
type RegisterMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

// ChapterResolvedMessage is pushed once per item when its latest
// chapter first resolves.
type ChapterResolvedMessage struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	MangaID string `json:"manga_id"`
	Chapter string `json:"chapter"`
}

type Client struct {
	ClientID string
	Addr     *net.UDPAddr
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(clientID string, addr *net.UDPAddr) {
	if clientID == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[clientID] = Client{ClientID: clientID, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	delete(r.clients, clientID)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Server is a tiny UDP endpoint: clients send a register message and
// then receive a datagram per newly resolved chapter. Lossy by
// nature; the TCP/WS hub is the reliable stream.
type Server struct {
	addr     string
	registry *Registry
	logger   *log.Logger

	mu   sync.Mutex
	conn *net.UDPConn
}

func NewServer(addr string, registry *Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{addr: addr, registry: registry, logger: logger}
}

func (s *Server) Run() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	s.logger.Printf("[notify] UDP server listening on %s", s.addr)

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.logger.Printf("[notify] invalid UDP message from %s: %v", addr, err)
			continue
		}
		if msg.Type != RegisterMessageType {
			continue
		}
		s.registry.Register(msg.ClientID, addr)
		s.logger.Printf("[notify] registered UDP client %s (%s)", msg.ClientID, addr)
	}
}

// Addr reports the bound UDP address, or nil before Run has started
// listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// NotifyResolved implements the tracker's resolved-notification hook.
func (s *Server) NotifyResolved(key, mangaID, chapter string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	payload, err := json.Marshal(ChapterResolvedMessage{
		Type:    ChapterResolvedMessageType,
		Key:     key,
		MangaID: mangaID,
		Chapter: chapter,
	})
	if err != nil {
		s.logger.Printf("[notify] marshal broadcast: %v", err)
		return
	}

	for _, client := range s.registry.Snapshot() {
		s.sendWithRetry(conn, client, payload)
	}
}

// sendWithRetry gives each datagram a second chance before dropping
// the client registration.
func (s *Server) sendWithRetry(conn *net.UDPConn, client Client, payload []byte) {
	if err := sendOnce(conn, client, payload); err == nil {
		return
	}
	if err := sendOnce(conn, client, payload); err != nil {
		s.logger.Printf("[notify] failed to reach client %s at %s: %v", client.ClientID, client.Addr, err)
		s.registry.Remove(client.ClientID)
	}
}

func sendOnce(conn *net.UDPConn, client Client, payload []byte) error {
	if client.Addr == nil {
		return errors.New("missing client address")
	}
	_, err := conn.WriteToUDP(payload, client.Addr)
	return err
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.ClientID == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
