package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"courtside/internal/config"
	"courtside/internal/logging"
)

const publishTimeout = 2 * time.Second

// mqttClient is the subset of mqtt.Client used for publishing.
type mqttClient interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// mqttService publishes events as JSON documents to <topic>/<event>. The
// broker connection is opened on first publish.
type mqttService struct {
	cfg     config.MQTT
	filters config.Notifications
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	client    mqttClient
	newClient func() mqttClient
}

func newMQTTService(cfg config.MQTT, filters config.Notifications, logger *slog.Logger) *mqttService {
	svc := &mqttService{
		cfg:     cfg,
		filters: filters,
		logger:  logging.NewComponentLogger(logger, "mqtt"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	svc.newClient = svc.defaultClient
	return svc
}

func (m *mqttService) defaultClient() mqttClient {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(m.connectTimeout())
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		m.logger.Info("mqtt connection established",
			logging.String("broker", m.cfg.Broker),
			logging.String("client_id", m.cfg.ClientID),
		)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logging.WarnWithContext(m.logger, "mqtt connection lost, will auto-reconnect", "mqtt_connection_lost",
			logging.Error(err),
			logging.String("broker", m.cfg.Broker),
			logging.String(logging.FieldErrorHint, "check broker availability"),
			logging.String(logging.FieldImpact, "run events may be dropped until reconnected"),
		)
	}
	return mqtt.NewClient(opts)
}

func (m *mqttService) connectTimeout() time.Duration {
	if m.cfg.ConnectTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.cfg.ConnectTimeoutSeconds) * time.Second
}

func (m *mqttService) connected() (mqttClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}
	if m.client == nil {
		m.client = m.newClient()
	}
	token := m.client.Connect()
	if !token.WaitTimeout(m.connectTimeout()) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", m.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", m.cfg.Broker, err)
	}
	return m.client, nil
}

type mqttMessage struct {
	Event     Event          `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (m *mqttService) Publish(ctx context.Context, event Event, data Payload) error {
	if !allowed(m.filters, event) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(mqttMessage{Event: event, Timestamp: m.now(), Fields: jsonFields(data)})
	if err != nil {
		return fmt.Errorf("encode mqtt event: %w", err)
	}
	client, err := m.connected()
	if err != nil {
		return err
	}
	topic := strings.TrimSuffix(m.cfg.Topic, "/") + "/" + string(event)
	qos := byte(min(max(m.cfg.QoS, 0), 2))
	token := client.Publish(topic, qos, false, body)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("mqtt publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	m.logger.Debug("run event published",
		logging.String("topic", topic),
		logging.Int("qos", int(qos)),
		logging.Int("size", len(body)),
	)
	return nil
}

func (m *mqttService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	m.client = nil
	return nil
}

func jsonFields(data Payload) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case error:
			out[k] = val.Error()
		case time.Duration:
			out[k] = val.Seconds()
		default:
			out[k] = val
		}
	}
	return out
}
