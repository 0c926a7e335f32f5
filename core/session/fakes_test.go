package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
)

type wireMessage struct {
	messageType int
	data        []byte
}

type fakeConn struct {
	incoming  chan wireMessage
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []wireMessage
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan wireMessage, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.incoming:
		return msg.messageType, msg.data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection reset by peer")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, wireMessage{messageType, append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) WriteControl(int, []byte, time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sendText(data string) {
	c.incoming <- wireMessage{websocket.TextMessage, []byte(data)}
}

func (c *fakeConn) sendBinary(data []byte) {
	c.incoming <- wireMessage{websocket.BinaryMessage, data}
}

func (c *fakeConn) writtenOfType(messageType int) []wireMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []wireMessage
	for _, msg := range c.written {
		if msg.messageType == messageType {
			out = append(out, msg)
		}
	}
	return out
}

// fakeDialer hands out queued results in order; once they run out every dial
// fails.
type fakeDialer struct {
	mu        sync.Mutex
	results   []dialResult
	endpoints []string
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) queue(results ...dialResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, results...)
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endpoints = append(d.endpoints, endpoint)
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	res := d.results[0]
	d.results = d.results[1:]
	if res.err != nil {
		return nil, res.err
	}
	return res.conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.endpoints)
}

type fakeInput struct {
	mu      sync.Mutex
	onFrame func(audio.Frame)
	starts  int
	stops   int
}

func (i *fakeInput) Start(onFrame func(audio.Frame)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onFrame = onFrame
	i.starts++
	return nil
}

func (i *fakeInput) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onFrame = nil
	i.stops++
	return nil
}

func (i *fakeInput) emit(frame audio.Frame) bool {
	i.mu.Lock()
	onFrame := i.onFrame
	i.mu.Unlock()
	if onFrame == nil {
		return false
	}
	onFrame(frame)
	return true
}

func (i *fakeInput) counts() (int, int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.starts, i.stops
}

type fakeOutput struct {
	mu     sync.Mutex
	render func([]float32)
	starts int
	stops  int
}

func (o *fakeOutput) Start(render func([]float32)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.render = render
	o.starts++
	return nil
}

func (o *fakeOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.render = nil
	o.stops++
	return nil
}

func (o *fakeOutput) SampleRate() int { return audio.DownstreamSampleRate }

// pull renders one buffer and reports whether it carried any audio.
func (o *fakeOutput) pull(n int) bool {
	o.mu.Lock()
	render := o.render
	o.mu.Unlock()
	if render == nil {
		return false
	}
	buf := make([]float32, n)
	render(buf)
	for _, s := range buf {
		if s != 0 {
			return true
		}
	}
	return false
}

func (o *fakeOutput) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.starts, o.stops
}

type fakeHost struct {
	input     *fakeInput
	output    *fakeOutput
	inputErr  error
	outputErr error
}

func newFakeHost() *fakeHost {
	return &fakeHost{input: &fakeInput{}, output: &fakeOutput{}}
}

func (h *fakeHost) OpenInput() (audio.Input, error) {
	if h.inputErr != nil {
		return nil, h.inputErr
	}
	return h.input, nil
}

func (h *fakeHost) OpenOutput(int) (audio.Output, error) {
	if h.outputErr != nil {
		return nil, h.outputErr
	}
	return h.output, nil
}

func (h *fakeHost) Close() {}

type recorder struct {
	mu       sync.Mutex
	states   []State
	controls []Controls
	notices  []error
}

func (r *recorder) observer() Observer {
	return Observer{
		OnStateChanged: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
		OnControlsChanged: func(c Controls) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.controls = append(r.controls, c)
		},
		OnNotice: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.notices = append(r.notices, err)
		},
	}
}

func (r *recorder) noticeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func (r *recorder) sawState(state State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == state {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %s", what)
}
