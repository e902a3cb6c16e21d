package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"skycast/internal/config"
	"skycast/internal/store"
	"skycast/internal/telemetry"
)

const subscribeQoS = 0

// ReadingHandler receives each decoded, validated, receipt-stamped reading.
type ReadingHandler func(r store.Reading) error

// Subscriber listens on the telemetry topic for the life of the process. It
// runs entirely on paho's goroutines: a bad message or failing store insert
// is logged and dropped and can never reach the HTTP serving path.
type Subscriber struct {
	client    mqtt.Client
	topic     string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handler ReadingHandler
}

func NewSubscriber(cfg config.Server, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		topic:  cfg.MQTTTopic,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = "skycast-server-" + uuid.NewString()[:8]
	}

	opts := newClientOptions(cfg.MQTTBrokerHost, cfg.MQTTBrokerPort, clientID)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBrokerHost, "port", cfg.MQTTBrokerPort)
		// CleanSession is on, so every (re)connect needs a fresh subscription.
		if err := s.subscribe(); err != nil {
			logger.Error("mqtt subscribe failed", "topic", s.topic, "error", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// SetReadingHandler sets the persistence callback. Must be called before
// Connect so queued messages arriving right after CONNACK are handled.
func (s *Subscriber) SetReadingHandler(handler ReadingHandler) {
	s.handler = handler
}

// Connect establishes the broker connection; the OnConnect callback performs
// the topic subscription.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}
}

func (s *Subscriber) subscribe() error {
	messageHandler := func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	}

	token := s.client.Subscribe(s.topic, subscribeQoS, messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", s.topic, "qos", subscribeQoS)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while handling mqtt message", "topic", topic, "panic", r)
		}
	}()

	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var msg telemetry.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("failed to parse telemetry message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if err := msg.Validate(); err != nil {
		s.logger.Warn("dropping invalid telemetry message",
			"topic", topic,
			"timestamp", msg.Timestamp,
			"error", err,
		)
		return
	}

	reading := store.Reading{
		Timestamp:        msg.Timestamp,
		Temp:             msg.Temp,
		Humidity:         msg.Humidity,
		Pressure:         msg.Pressure,
		WindSpeed:        msg.WindSpeed,
		Weather:          msg.Weather,
		ServerReceivedTS: time.Now().UnixMilli(),
	}

	if s.handler == nil {
		return
	}
	if err := s.handler(reading); err != nil {
		// No buffering or retry: a store outage drops the reading.
		s.logger.Error("failed to store reading",
			"topic", topic,
			"timestamp", reading.Timestamp,
			"error", err,
		)
		return
	}

	s.logger.Debug("stored telemetry message",
		"timestamp", reading.Timestamp,
		"server_received_ts", reading.ServerReceivedTS,
	)
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection. Idempotent.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.topic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
