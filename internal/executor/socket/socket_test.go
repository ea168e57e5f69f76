package socket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namnv2496/go-exec-broker/internal/model"
)

func TestSessionRoundTrip(t *testing.T) {
	received := make(chan model.ExecutionRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := Upgrade(w, r)
		if err != nil {
			return
		}
		defer session.Close()

		req, err := session.ReadRequest()
		if err != nil {
			return
		}
		received <- req

		result := model.Judge(req.TestCases[0], model.Outcome{Output: "2"})
		_ = session.SendProgress(0, result)
		_ = session.SendFinal(model.TestResultsResponse{
			Results: []model.TestResult{result},
			Summary: model.Summarize([]model.TestResult{result}),
		})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(model.ExecutionRequest{
		Code:      "print(1+1)",
		Language:  "python",
		TestCases: []model.TestCase{{Input: "", ExpectedOutput: "2"}},
	}))

	var progress Progress
	require.NoError(t, conn.ReadJSON(&progress))
	assert.Equal(t, TypeTestResult, progress.Type)
	assert.Equal(t, 0, progress.Index)
	assert.True(t, progress.Result.Passed)

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	resp, err := model.DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, model.TypeTestResults, resp.ResponseType())

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))

	assert.Equal(t, "python", (<-received).Language)
}

func TestSessionSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := Upgrade(w, r)
		if err != nil {
			return
		}
		defer session.Close()
		_ = session.SendError("Code and language are required")
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var failure Failure
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, Failure{Type: TypeError, Error: "Code and language are required"}, failure)
}
