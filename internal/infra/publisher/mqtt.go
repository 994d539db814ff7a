// Package publisher delivers usage threshold alerts.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Config holds the broker settings.
type Config struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTT publishes alerts to <prefix>/<uid>/alert.
type MQTT struct {
	client      client
	topicPrefix string
	logger      *zap.Logger
}

// NewMQTT connects to the broker.
func NewMQTT(cfg Config, logger *zap.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt: connection lost", zap.Error(err))
	})

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	logger.Info("mqtt: connected", zap.String("broker", broker))
	return newMQTT(c, cfg.TopicPrefix, logger), nil
}

func newMQTT(c client, prefix string, logger *zap.Logger) *MQTT {
	if prefix == "" {
		prefix = "electritrack"
	}
	return &MQTT{client: c, topicPrefix: strings.TrimRight(prefix, "/"), logger: logger}
}

// PublishAlert sends the event at QoS 1, not retained.
func (p *MQTT) PublishAlert(ctx context.Context, ev domain.AlertEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/alert", p.topicPrefix, ev.UserID)
	token := p.client.Publish(topic, 1, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}

	p.logger.Info("mqtt: alert published", zap.String("topic", topic))
	return nil
}

// Close disconnects from the MQTT broker.
func (p *MQTT) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// Log is the publisher used when MQTT is disabled: alerts are only logged.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log { return &Log{logger: logger} }

func (l *Log) PublishAlert(_ context.Context, ev domain.AlertEvent) error {
	l.logger.Info("usage alert",
		zap.String("user_id", ev.UserID),
		zap.String("device_id", ev.DeviceID),
		zap.Float64("today_usage", ev.TodayUsage),
		zap.Float64("threshold", ev.Threshold),
	)
	return nil
}

func (l *Log) Close() {}
