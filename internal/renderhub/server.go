package renderhub

import (
	"bufio"
	"errors"
	"log"
	"net"
	"sync"
)

// Server accepts raw TCP render clients and keeps them subscribed to
// the hub until they disconnect.
type Server struct {
	Addr string
	Hub  *Hub

	// MinChapter supplies the threshold for the welcome line; nil
	// means no welcome is sent.
	MinChapter func() float64

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub, minChapter func() float64) *Server {
	return &Server{Addr: addr, Hub: hub, MinChapter: minChapter}
}

func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log.Printf("[renderhub] listening on %s", s.Addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}

		s.Hub.Add(conn)
		if s.MinChapter != nil {
			s.Hub.Welcome(conn, s.MinChapter())
		}
		log.Printf("[renderhub] client connected: %s", conn.RemoteAddr())

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				log.Printf("[renderhub] client disconnected: %s", c.RemoteAddr())
			}()

			// consume and ignore anything the client sends
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
