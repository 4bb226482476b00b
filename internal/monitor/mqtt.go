package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned by Publish before Connect or after a lost connection.
var ErrNotConnected = errors.New("mqtt not connected")

// MQTTOptions configures an MQTTSink.
type MQTTOptions struct {
	Broker   string // host:port or a full URL
	Topic    string
	ClientID string
	QoS      byte
}

// MQTTSink publishes each event as JSON to a broker topic.
type MQTTSink struct {
	opts   MQTTOptions
	logger *slog.Logger
	client mqtt.Client

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

// MQTTStats contains sink statistics
type MQTTStats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

func NewMQTTSink(opts MQTTOptions, logger *slog.Logger) *MQTTSink {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ClientID == "" {
		opts.ClientID = fmt.Sprintf("stencil-%d", time.Now().UnixNano())
	}
	return &MQTTSink{opts: opts, logger: logger}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect establishes the broker connection. The client reconnects on its own afterwards.
func (s *MQTTSink) Connect(timeout time.Duration) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(s.opts.Broker))
	opts.SetClientID(s.opts.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		s.setConnected(true)
		s.logger.Info("mqtt connection established", "broker", s.opts.Broker, "client_id", s.opts.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		s.setConnected(false)
		s.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", s.opts.Broker)
	}

	s.client = mqtt.NewClient(opts)
	s.logger.Info("connecting to mqtt broker", "broker", s.opts.Broker)

	token := s.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	s.setConnected(true)
	return nil
}

func (s *MQTTSink) Publish(e Event) error {
	if !s.isConnected() {
		s.countError()
		return ErrNotConnected
	}

	payload, err := e.JSON()
	if err != nil {
		s.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := s.client.Publish(s.opts.Topic, s.opts.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		s.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		s.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	s.mu.Lock()
	s.published++
	s.mu.Unlock()

	s.logger.Debug("progress published", "topic", s.opts.Topic, "qos", s.opts.QoS, "size", len(payload))
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		s.logger.Info("mqtt disconnected")
	}
	s.setConnected(false)
	return nil
}

func (s *MQTTSink) Stats() MQTTStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MQTTStats{Connected: s.connected, Published: s.published, Errors: s.errors}
}

func (s *MQTTSink) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *MQTTSink) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MQTTSink) countError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}
