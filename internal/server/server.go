package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/tesseract-mcp/internal/config"
	"github.com/ironsheep/tesseract-mcp/internal/imaging"
	"github.com/ironsheep/tesseract-mcp/internal/ocr"
)

// ServerName and ServerVersion are reported by initialize.
const (
	ServerName    = "tesseract-mcp"
	ServerVersion = "0.2.0"
)

// Server handles MCP protocol communication
type Server struct {
	cfg   *config.Config
	log   logrus.FieldLogger
	cache *imaging.ImageCache

	in  io.Reader
	out io.Writer

	// outMu serializes writes to out; progress notifications are sent
	// while a tool call is still running.
	outMu sync.Mutex
	enc   *json.Encoder

	// engineMu guards both engines, which are not safe for concurrent use.
	engineMu  sync.Mutex
	engine    *ocr.Engine
	engineFor string
	openFunc  func(ocr.InitOptions, ...ocr.Option) (*ocr.Engine, error)

	// layout serves ocr_layout. It loads no language data, so it works
	// without traineddata and survives language changes of engine.
	layout     *ocr.Engine
	layoutFunc func(...ocr.Option) (*ocr.Engine, error)
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the engine profile. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// WithLogger sets the logger. Logs must not go to the protocol stream.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// New creates a new MCP server instance
func New(opts ...Option) *Server {
	s := &Server{
		cfg:        config.Default(),
		cache:      imaging.NewImageCache(),
		in:         os.Stdin,
		out:        os.Stdout,
		openFunc:   ocr.Open,
		layoutFunc: openLayoutEngine,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		s.log = l
	}
	s.enc = json.NewEncoder(s.out)
	return s
}

// Run reads requests until the input closes. The engine is released
// before Run returns.
func (s *Server) Run() error {
	defer s.Close()

	scanner := bufio.NewScanner(s.in)
	// Image paths are short, but ocr_variable values and configs may not be.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			s.write(s.errorResponse(nil, -32700, "Parse error", err.Error()))
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// Close releases the engines.
func (s *Server) Close() error {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	var err error
	if s.layout != nil {
		err = s.layout.Close()
		s.layout = nil
	}
	if s.engine != nil {
		if cerr := s.engine.Close(); cerr != nil {
			err = cerr
		}
		s.engine = nil
		s.engineFor = ""
	}
	return err
}

func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

// notify sends a notification to the client.
func (s *Server) notify(method string, params interface{}) {
	s.write(&MCPNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.WithField("method", req.Method).Debug("request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "notifications/cancelled":
		// Client notifications, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    ServerName,
				"version": ServerVersion,
			},
		},
	}
}

// withEngine runs fn with the engine initialized for languages, opening or
// re-initializing it when the language set changes. An empty languages
// string uses the profile's languages.
func (s *Server) withEngine(languages string, fn func(e *ocr.Engine) (interface{}, error)) (interface{}, error) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	if languages == "" {
		languages = s.cfg.Languages
	}
	opts, err := s.cfg.InitOptions()
	if err != nil {
		return nil, err
	}
	if opts.Languages, err = ocr.ParseLanguageSpec(languages); err != nil {
		return nil, err
	}

	switch {
	case s.engine == nil:
		e, err := s.openFunc(opts, ocr.WithLogger(s.log))
		if err != nil {
			return nil, err
		}
		s.engine = e
	case s.engineFor != languages:
		if err := s.engine.Init(opts); err != nil {
			s.engineFor = ""
			return nil, err
		}
	}
	if s.engineFor != languages {
		s.engineFor = languages
		if psm, ok := s.cfg.PageSegModeValue(); ok {
			if err := s.engine.SetPageSegMode(psm); err != nil {
				return nil, err
			}
		}
		s.log.WithField("languages", languages).Info("engine ready")
	}
	return fn(s.engine)
}

// openLayoutEngine creates an Engine prepared for layout analysis only.
func openLayoutEngine(opts ...ocr.Option) (*ocr.Engine, error) {
	e, err := ocr.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.InitForAnalysePage(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// withLayoutEngine runs fn with the layout-only engine, creating it on
// first use.
func (s *Server) withLayoutEngine(fn func(e *ocr.Engine) (interface{}, error)) (interface{}, error) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	if s.layout == nil {
		e, err := s.layoutFunc(ocr.WithLogger(s.log))
		if err != nil {
			return nil, err
		}
		s.layout = e
		s.log.Info("layout engine ready")
	}
	return fn(s.layout)
}
