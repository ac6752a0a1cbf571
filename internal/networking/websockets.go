package networking

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StreamClient usage:
//   - Push audio chunks into Writer until done - closing it closes the
//     websocket gracefully.
//   - Read transcript messages from Reader until it is CLOSED (which means
//     the recognizer hung up); do NOT close Reader yourself.
//
// Audio goes out as websocket.BinaryMessage, transcripts come back as
// websocket.TextMessage (JSON, recognizer-specific).
type StreamClient struct {
	conn   *websocket.Conn
	writer chan []byte
	reader chan []byte
}

// DialStream connects to a streaming recognition endpoint and starts the
// reader/writer pumps.
func DialStream(url string, header http.Header) (*StreamClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", url).Msg("streaming recognizer connected")

	c := &StreamClient{
		conn:   conn,
		writer: make(chan []byte, 64),
		reader: make(chan []byte, 64),
	}
	go c.writeRoutine()
	go c.readRoutine()
	return c, nil
}

// Writer is where audio chunks go; close it to end the stream gracefully.
func (c *StreamClient) Writer() chan<- []byte {
	return c.writer
}

// Reader yields recognizer messages until the connection ends.
func (c *StreamClient) Reader() <-chan []byte {
	return c.reader
}

func (c *StreamClient) writeRoutine() {
	for {
		chunk, ok := <-c.writer
		if !ok {
			log.Info().Msg("chunk writer closed, closing websocket gracefully")
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			errLog(c.conn.WriteMessage(websocket.CloseMessage, msg), "websocket.CloseMessage")
			return
		}
		if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Info().Msg("websocket already closed, dropping remaining chunks")
			} else {
				errLog(err, "ws.WriteMessage")
			}
			return
		}
	}
}

func (c *StreamClient) readRoutine() {
	defer close(c.reader)
	defer func() { errLog(c.conn.Close(), "websocket.Close") }()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Info().Msg("websocket closed normally by the recognizer")
			} else {
				log.Error().Err(err).Msg("couldn't read message from websocket")
			}
			return
		}
		c.reader <- msg
	}
}

func errLog(err error, what string) {
	if err != nil {
		log.Error().Err(err).Msg(what)
		debug.PrintStack()
	}
}
