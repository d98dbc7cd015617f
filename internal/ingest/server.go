package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/pkg/config"
	"github.com/panjf2000/gnet/v2"
	"go.uber.org/zap"
)

// maxLineLength bounds a single feed line; a peer exceeding it is disconnected
const maxLineLength = 64 * 1024

const defaultPort = 7400

type connState struct {
	buf []byte
}

// Server is the gnet event handler for the sample feed
type Server struct {
	gnet.BuiltinEventEngine

	ctx       context.Context
	wg        *sync.WaitGroup
	addr      string
	multicore bool
	handler   *Handler
	logger    *zap.SugaredLogger

	mu     sync.Mutex
	eng    gnet.Engine
	booted bool
	ready  chan struct{}
}

// NewServer creates the ingest server
func NewServer(ctx context.Context, wg *sync.WaitGroup, ic config.IngestData, sessions Sessions, logger *zap.SugaredLogger) *Server {
	if ic.ListenAddr == "" {
		ic.ListenAddr = "0.0.0.0"
	}
	if ic.Port == 0 {
		logger.Infof("ingest.port not provided; defaulting to %d", defaultPort)
		ic.Port = defaultPort
	}
	return &Server{
		ctx:       ctx,
		wg:        wg,
		addr:      fmt.Sprintf("tcp://%s:%d", ic.ListenAddr, ic.Port),
		multicore: ic.Multicore,
		handler:   NewHandler(sessions, logger),
		logger:    logger,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the listener is accepting connections
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// StartController runs the event loop until the context is cancelled or
// StopController is called
func (s *Server) StartController() error {
	s.logger.Infof("starting ingest server on %s...", s.addr)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := gnet.Run(s, s.addr,
			gnet.WithMulticore(s.multicore),
			gnet.WithTCPKeepAlive(time.Minute),
			gnet.WithLogger(s.logger))
		if err != nil {
			s.logger.Errorf("ingest server error: %v", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.StopController(stopCtx)
	}()
	return nil
}

// StopController stops accepting feed data
func (s *Server) StopController(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.booted {
		return nil
	}
	s.booted = false
	s.logger.Info("shutting down the ingest server...")
	return s.eng.Stop(ctx)
}

// OnBoot records the engine so it can be stopped later
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.mu.Lock()
	s.eng = eng
	s.booted = true
	s.mu.Unlock()
	close(s.ready)
	return gnet.None
}

// OnOpen attaches a line buffer to the connection
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	s.logger.Debugw("feed connected", "remote", c.RemoteAddr().String())
	c.SetContext(&connState{})
	return nil, gnet.None
}

// OnClose logs the disconnect
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	if err != nil {
		s.logger.Debugw("feed disconnected", "remote", c.RemoteAddr().String(), "error", err)
	}
	return gnet.None
}

// OnTraffic splits the inbound bytes into lines and handles each one
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	st, ok := c.Context().(*connState)
	if !ok {
		return gnet.Close
	}
	data, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	st.buf = append(st.buf, data...)

	rest := st.buf
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(rest[:i])
		rest = rest[i+1:]
		if reply, send := s.handler.Handle(line); send {
			s.reply(c, reply)
		}
	}
	n := copy(st.buf, rest)
	st.buf = st.buf[:n]

	if len(st.buf) > maxLineLength {
		s.reply(c, Reply{Error: "line too long"})
		return gnet.Close
	}
	return gnet.None
}

func (s *Server) reply(c gnet.Conn, r Reply) {
	out, err := json.Marshal(r)
	if err != nil {
		s.logger.Errorf("could not encode ingest reply: %v", err)
		return
	}
	if _, err := c.Write(append(out, '\n')); err != nil {
		s.logger.Debugw("could not write ingest reply", "error", err)
	}
}
