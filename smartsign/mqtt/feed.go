// Package mqtt feeds the sign from an MQTT topic. A Feed subscribes to the
// topic, keeps the most recent payload and hands it to the refresher
// through Fetch, so the refresher never waits on the network.
package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	mqtt "github.com/soypat/natiu-mqtt"
)

// MaxPayload is the largest text blob kept from a message. Longer payloads
// are truncated.
const MaxPayload = 256

var (
	// ErrNoMessage is returned by Fetch before the first message arrives.
	ErrNoMessage = errors.New("mqtt: no message received yet")
	// ErrStale is returned by Fetch when the last message is older than MaxAge.
	ErrStale = errors.New("mqtt: last message is stale")
)

// Feed is a subscriber that remembers the latest payload on Topic.
type Feed struct {
	ID       string
	Topic    string
	Username string // optional
	Password string // optional, requires Username
	// Timeout bounds connecting and subscribing.
	Timeout time.Duration
	// MaxAge makes Fetch fail once the latest message is this old.
	// Zero keeps a message forever.
	MaxAge time.Duration
	Logger *slog.Logger

	mu     sync.Mutex
	latest string
	at     time.Time
	has    bool

	now func() time.Time
}

// Fetch returns the most recent payload.
func (f *Feed) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.has {
		return "", ErrNoMessage
	}
	if f.MaxAge > 0 && f.clock().Sub(f.at) > f.MaxAge {
		return "", ErrStale
	}
	return f.latest, nil
}

// Serve connects over conn, subscribes to Topic and stores incoming
// messages until the connection fails or ctx is done. conn is closed on
// return.
func (f *Feed) Serve(ctx context.Context, conn io.ReadWriteCloser) error {
	logger := f.logger()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub:   f.onPub,
	})

	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(f.ID))
	// The feed only reads; with no keepalive the broker never expects pings.
	varconn.KeepAlive = 0
	if f.Username != "" {
		varconn.Username = []byte(f.Username)
		if f.Password != "" {
			varconn.Password = []byte(f.Password)
		}
	}

	setupCtx, cancel := f.withTimeout(ctx)
	defer cancel()

	logger.Info("mqtt:connecting", slog.String("id", f.ID))
	if err := client.Connect(setupCtx, conn, &varconn); err != nil {
		return errors.New("mqtt connect: " + err.Error())
	}
	err := client.Subscribe(setupCtx, mqtt.VariablesSubscribe{
		PacketIdentifier: 1,
		TopicFilters: []mqtt.SubscribeRequest{
			{TopicFilter: []byte(f.Topic), QoS: mqtt.QoS0},
		},
	})
	if err != nil {
		return errors.New("mqtt subscribe " + f.Topic + ": " + err.Error())
	}
	logger.Info("mqtt:subscribed", slog.String("topic", f.Topic))

	for client.IsConnected() && ctx.Err() == nil {
		if err := client.HandleNext(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.New("mqtt handle: " + err.Error())
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("mqtt disconnected: " + errString(client.Err()))
}

// Dialer opens a fresh transport to the broker.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Run keeps a subscription alive, redialing after every failure, until
// ctx is done.
func (f *Feed) Run(ctx context.Context, dial Dialer, retry time.Duration) error {
	logger := f.logger()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := dial(ctx)
		if err != nil {
			logger.Error("mqtt:dial-failed", slog.String("err", err.Error()))
		} else {
			err = f.Serve(ctx, conn)
			logger.Error("mqtt:disconnected", slog.String("reason", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

// onPub stores the payload of one publish packet. r reads from the
// connection, so the lock is only taken once the payload is in hand.
func (f *Feed) onPub(_ mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
	var payload [MaxPayload]byte
	n, err := io.ReadFull(r, payload[:])
	text := payload[:n]
	switch err {
	case nil:
		// Buffer full; drop the rest so the stream stays aligned.
		if _, err := io.Copy(io.Discard, r); err != nil {
			return err
		}
		text = trimPartialRune(text)
	case io.EOF, io.ErrUnexpectedEOF:
	default:
		return err
	}

	f.mu.Lock()
	f.latest = string(text)
	f.at = f.clock()
	f.has = true
	f.mu.Unlock()

	f.logger().Info("mqtt:message",
		slog.String("topic", string(varPub.TopicName)),
		slog.Int("bytes", len(text)),
	)
	return nil
}

func (f *Feed) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.Timeout > 0 {
		return context.WithTimeout(ctx, f.Timeout)
	}
	return context.WithCancel(ctx)
}

func (f *Feed) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

func (f *Feed) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// trimPartialRune drops a multi-byte rune cut in half by MaxPayload.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		break
	}
	return b
}

func errString(err error) string {
	if err == nil {
		return "no reason given"
	}
	return err.Error()
}
