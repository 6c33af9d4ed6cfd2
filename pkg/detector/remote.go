package detector

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"VisionPredictor/internal/entity"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// RemoteOptions configures a detector that forwards frames to an inference
// worker over a websocket.
type RemoteOptions struct {
	Options
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// remoteReply is what the inference worker sends back for one frame. Each
// detection is [x1, y1, x2, y2, confidence, class_index].
type remoteReply struct {
	Detections [][]float64 `json:"detections"`
	Error      string      `json:"error,omitempty"`
}

type remoteDetector struct {
	options RemoteOptions
	dialer  *websocket.Dialer
	conn    *websocket.Conn
	mu      sync.Mutex
	log     *logrus.Logger
}

// NewRemote dials the inference worker once. If the first dial fails the
// detector is absent for the rest of the process.
func NewRemote(log *logrus.Logger, options RemoteOptions) (IDetector, error) {
	options.Options = options.Options.withDefaults()
	if options.ModelPath == "" {
		options.ModelPath = options.URL
	}
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = 10 * time.Second
	}
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = 30 * time.Second
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = 5 * time.Second
	}

	if options.URL == "" {
		return Absent(BackendRemote, options.Options), errors.Wrap(ErrRemoteUnavailable, "DETECTOR_URL is not configured")
	}

	d := &remoteDetector{
		options: options,
		dialer: &websocket.Dialer{
			HandshakeTimeout: options.HandshakeTimeout,
		},
		log: log,
	}

	d.mu.Lock()
	err := d.connectLocked()
	d.mu.Unlock()
	if err != nil {
		return Absent(BackendRemote, options.Options), err
	}

	log.WithFields(logrus.Fields{
		"url":        options.URL,
		"confidence": options.Confidence,
	}).Info("Connected to remote detector")

	return d, nil
}

func (d *remoteDetector) connectLocked() error {
	conn, _, err := d.dialer.Dial(d.options.URL, nil)
	if err != nil {
		return errors.Wrapf(ErrRemoteUnavailable, "failed to connect to %s: %v", d.options.URL, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.options.WriteTimeout)); err != nil {
			d.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	d.conn = conn
	return nil
}

func (d *remoteDetector) dropLocked() {
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

// Detect sends one JPEG frame and waits for its reply. Frames on the shared
// connection are strictly request/response, so calls are serialized.
func (d *remoteDetector) Detect(ctx context.Context, img image.Image) ([]entity.RawDetection, error) {
	var frame bytes.Buffer
	if err := jpeg.Encode(&frame, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, errors.Wrap(err, "failed to encode frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.conn == nil {
		if err := d.connectLocked(); err != nil {
			return nil, err
		}
	}

	deadline := time.Now().Add(d.options.ReadTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	_ = d.conn.SetWriteDeadline(time.Now().Add(d.options.WriteTimeout))
	if err := d.conn.WriteMessage(websocket.BinaryMessage, frame.Bytes()); err != nil {
		d.dropLocked()
		return nil, errors.Wrap(err, "error sending frame")
	}

	_ = d.conn.SetReadDeadline(deadline)
	_, message, err := d.conn.ReadMessage()
	if err != nil {
		d.dropLocked()
		return nil, errors.Wrap(err, "error reading detector reply")
	}

	_ = d.conn.SetReadDeadline(time.Time{})
	_ = d.conn.SetWriteDeadline(time.Time{})

	return parseRemoteReply(message, d.options.Confidence)
}

func parseRemoteReply(message []byte, confidence float64) ([]entity.RawDetection, error) {
	var reply remoteReply
	if err := jsoniter.Unmarshal(message, &reply); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling detector reply")
	}
	if reply.Error != "" {
		return nil, errors.Errorf("remote detector error: %s", reply.Error)
	}

	out := make([]entity.RawDetection, 0, len(reply.Detections))
	for i, row := range reply.Detections {
		if len(row) < 6 {
			return nil, errors.Wrapf(ErrUnexpectedOutput, "detection %d has %d values", i, len(row))
		}
		if row[4] < confidence {
			continue
		}
		out = append(out, entity.RawDetection{
			X1:         row[0],
			Y1:         row[1],
			X2:         row[2],
			Y2:         row[3],
			Confidence: row[4],
			ClassIndex: int(row[5]),
		})
	}
	return out, nil
}

func (d *remoteDetector) Status() Status      { return StatusReady }
func (d *remoteDetector) ModelPath() string   { return d.options.ModelPath }
func (d *remoteDetector) Backend() Backend    { return BackendRemote }
func (d *remoteDetector) Confidence() float64 { return d.options.Confidence }

func (d *remoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	_ = d.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(d.options.WriteTimeout),
	)
	d.dropLocked()
	return nil
}
