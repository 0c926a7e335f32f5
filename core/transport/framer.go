package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrTransportClosed is returned when the connection ends without the local
// side asking for it, and by sends after Close.
var ErrTransportClosed = errors.New("transport closed")

const closeGracePeriod = 2 * time.Second

// Conn is the subset of *websocket.Conn the framer uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Message is one inbound websocket message.
type Message struct {
	Binary bool
	Data   []byte
}

// Handlers receive routed inbound messages. Audio is raw downstream PCM16.
type Handlers struct {
	OnAudio func(pcm []byte)
	OnEvent func(events.Event)
}

func (h Handlers) defaults() Handlers {
	return Handlers{
		OnAudio: func([]byte) {},
		OnEvent: func(events.Event) {},
	}
}

func (h Handlers) with(other Handlers) Handlers {
	if other.OnAudio != nil {
		h.OnAudio = other.OnAudio
	}
	if other.OnEvent != nil {
		h.OnEvent = other.OnEvent
	}
	return h
}

// Framer splits one duplex websocket into binary media and JSON control
// messages. Writes are serialized; reads happen on a single goroutine in
// ReadLoop.
type Framer struct {
	conn Conn

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewFramer(conn Conn) *Framer {
	return &Framer{conn: conn}
}

// ReadLoop reads until the connection ends and hands each message to
// deliver in arrival order. It returns nil after Close or context
// cancellation and an error wrapping ErrTransportClosed otherwise.
func (f *Framer) ReadLoop(ctx context.Context, deliver func(Message)) error {
	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()

	for {
		messageType, data, err := f.conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrTransportClosed, err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			receivedMessages.Add(ctx, 1, metric.WithAttributes(kindBinary))
			deliver(Message{Binary: true, Data: data})
		case websocket.TextMessage:
			receivedMessages.Add(ctx, 1, metric.WithAttributes(kindText))
			deliver(Message{Data: data})
		}
	}
}

// Route dispatches one message. Malformed text is logged, counted and
// returned; the caller continues with the next message either way.
func (f *Framer) Route(ctx context.Context, msg Message, handlers Handlers) error {
	h := handlers.defaults().with(handlers)

	if msg.Binary {
		if len(msg.Data) == 0 {
			return nil
		}
		h.OnAudio(msg.Data)
		return nil
	}

	decoded, err := Decode(msg.Data)
	if err != nil {
		malformedMessages.Add(ctx, 1)
		logger.Warn("dropping downstream message", "error", err, "size", len(msg.Data))
		return err
	}
	for _, event := range decoded {
		decodedEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("group", event.Kind().Group())))
		h.OnEvent(event)
	}
	return nil
}

func (f *Framer) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := f.write(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	sentBytes.Add(context.Background(), int64(len(pcm)), metric.WithAttributes(kindBinary))
	return nil
}

func (f *Framer) SendText(text string) error {
	if err := f.writeJSON(TextMessage{Type: messageTypeText, Text: text}); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

func (f *Framer) SendImage(mimeType string, data []byte) error {
	msg := ImageMessage{
		Type:     messageTypeImage,
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
	if err := f.writeJSON(msg); err != nil {
		return fmt.Errorf("failed to send image: %w", err)
	}
	return nil
}

// Close sends a normal closure and closes the connection. It is safe to call
// more than once and from any goroutine.
func (f *Framer) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		f.writeMu.Lock()
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		f.writeMu.Unlock()
		err = f.conn.Close()
	})
	return err
}

func (f *Framer) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := f.write(websocket.TextMessage, data); err != nil {
		return err
	}
	sentBytes.Add(context.Background(), int64(len(data)), metric.WithAttributes(kindText))
	return nil
}

func (f *Framer) write(messageType int, data []byte) error {
	if f.closed.Load() {
		return ErrTransportClosed
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if err := f.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return nil
}
