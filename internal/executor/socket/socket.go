package socket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

// Message type values sent to the client:
//   - "test_result"      one finished test case (index + result)
//   - "test_results"     final batch response
//   - "execution_result" final single-run response
//   - "error"            the request was rejected; error holds the reason
const (
	TypeTestResult = "test_result"
	TypeError      = "error"
)

// Progress is streamed once per finished test case.
type Progress struct {
	Type   string           `json:"type"`
	Index  int              `json:"index"`
	Result model.TestResult `json:"result"`
}

type Failure struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

const (
	writeWait      = 10 * time.Second
	readWait       = 30 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session is one streamed execution: the client sends a single request and
// receives progress messages followed by one final message.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Upgrade switches the HTTP connection to a websocket. On failure the upgrader
// has already written an HTTP error.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Session, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return &Session{conn: conn}, nil
}

// ReadRequest waits for the client's execution request.
func (s *Session) ReadRequest() (model.ExecutionRequest, error) {
	var req model.ExecutionRequest
	_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
	err := s.conn.ReadJSON(&req)
	return req, err
}

func (s *Session) SendProgress(index int, result model.TestResult) error {
	return s.write(Progress{Type: TypeTestResult, Index: index, Result: result})
}

// SendFinal writes the terminal response; its own "type" tag identifies it.
func (s *Session) SendFinal(resp model.Response) error {
	return s.write(resp)
}

func (s *Session) SendError(msg string) error {
	return s.write(Failure{Type: TypeError, Error: msg})
}

// Close sends a normal closure frame and closes the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *Session) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}
