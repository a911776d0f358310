package coap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerDispatch(t *testing.T) {
	srv := NewServer("node")
	require.Equal(t, "node", srv.Name())

	srv.Handle(CodeGET, func(req *Message) (*Message, error) {
		return &Message{Type: Confirmable, Code: CodeContent, Payload: []byte("pong")}, nil
	})

	resp, err := srv.Serve(&Message{
		Type:      Confirmable,
		Code:      CodeGET,
		MessageID: 31,
		Token:     []byte{0xaa, 0xbb},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, CodeContent, resp.Code)
	assert.Equal(t, []byte("pong"), resp.Payload)

	// id and token are completed from the request, and the confirmable
	// response rides back as the acknowledgement
	assert.Equal(t, uint16(31), resp.MessageID)
	assert.Equal(t, []byte{0xaa, 0xbb}, resp.Token)
	assert.Equal(t, Acknowledgement, resp.Type)
}

func TestServerNonConfirmablePromotion(t *testing.T) {
	srv := NewServer("node")
	srv.Handle(CodePOST, func(req *Message) (*Message, error) {
		return &Message{Type: Confirmable, Code: CodeChanged}, nil
	})

	resp, err := srv.Serve(&Message{Type: NonConfirmable, Code: CodePOST, MessageID: 5})
	require.NoError(t, err)
	assert.Equal(t, NonConfirmable, resp.Type)
}

func TestServerExplicitTypeKept(t *testing.T) {
	srv := NewServer("node")
	srv.Handle(CodeGET, func(req *Message) (*Message, error) {
		return &Message{Type: Reset, Code: CodeEmpty}, nil
	})

	resp, err := srv.Serve(&Message{Type: Confirmable, Code: CodeGET, MessageID: 2})
	require.NoError(t, err)
	assert.Equal(t, Reset, resp.Type)
}

func TestServerFallback(t *testing.T) {
	srv := NewServer("node")
	srv.HandleFallback(func(req *Message) (*Message, error) {
		return &Message{Type: Confirmable, Code: CodeMethodNotAllowed}, nil
	})

	resp, err := srv.Serve(&Message{Type: Confirmable, Code: CodeDELETE, MessageID: 8})
	require.NoError(t, err)
	assert.Equal(t, CodeMethodNotAllowed, resp.Code)
}

func TestServerNoHandler(t *testing.T) {
	srv := NewServer("node")

	resp, err := srv.Serve(&Message{Type: Confirmable, Code: CodePUT})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "no handler")

	st := srv.Stats()
	assert.Equal(t, uint64(1), st.Requests)
	assert.Equal(t, uint64(0), st.Responses)
	assert.Equal(t, uint64(1), st.Failures)
}

func TestServerHandlerError(t *testing.T) {
	boom := errors.New("boom")
	srv := NewServer("node")
	srv.Handle(CodeGET, func(req *Message) (*Message, error) {
		return nil, boom
	})

	resp, err := srv.Serve(&Message{Type: Confirmable, Code: CodeGET})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, resp)
	assert.Equal(t, uint64(1), srv.Stats().Failures)
}

func TestServerSilentHandler(t *testing.T) {
	srv := NewServer("node")
	srv.Handle(CodePOST, func(req *Message) (*Message, error) {
		return nil, nil
	})

	resp, err := srv.Serve(&Message{Type: NonConfirmable, Code: CodePOST})
	require.NoError(t, err)
	assert.Nil(t, resp)

	st := srv.Stats()
	assert.Equal(t, uint64(1), st.Requests)
	assert.Equal(t, uint64(0), st.Responses)
	assert.Equal(t, uint64(0), st.Failures)
}

func TestServerNilRequest(t *testing.T) {
	srv := NewServer("node")
	_, err := srv.Serve(nil)
	require.Error(t, err)
	assert.Equal(t, uint64(0), srv.Stats().Requests)
}
