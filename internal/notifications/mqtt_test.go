package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"courtside/internal/config"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (f fakeToken) Wait() bool                     { return !f.timeout }
func (f fakeToken) WaitTimeout(time.Duration) bool { return !f.timeout }
func (f fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (f fakeToken) Error() error { return f.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	connects     int
	messages     []published
	disconnected bool
}

func (f *fakeClient) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return fakeToken{err: f.connectErr}
	}
	f.connected = true
	return fakeToken{}
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Publish(topic string, qos byte, _ bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return fakeToken{}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func newTestMQTT(client *fakeClient, filters config.Notifications) *mqttService {
	cfg := config.Default().MQTT
	cfg.Enabled = true
	cfg.Topic = "courtside/runs/"
	svc := newMQTTService(cfg, filters, nil)
	svc.newClient = func() mqttClient { return client }
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestMQTTPublishesJSONUnderEventTopic(t *testing.T) {
	client := &fakeClient{}
	svc := newTestMQTT(client, config.Default().Notifications)

	err := svc.Publish(context.Background(), EventBranchFailed, Payload{
		"runID":  "run-1",
		"branch": "player2_parent_hi",
		"error":  errors.New("generation error"),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Publish(context.Background(), EventRunCompleted, Payload{"duration": 2 * time.Second}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.connects != 1 {
		t.Fatalf("expected single connect, got %d", client.connects)
	}
	if len(client.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.messages))
	}
	first := client.messages[0]
	if first.topic != "courtside/runs/branch_failed" || first.qos != 1 {
		t.Fatalf("unexpected topic/qos %s/%d", first.topic, first.qos)
	}
	var decoded struct {
		Event     string         `json:"event"`
		Timestamp time.Time      `json:"timestamp"`
		Fields    map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(first.payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Event != "branch_failed" || decoded.Fields["error"] != "generation error" || decoded.Fields["branch"] != "player2_parent_hi" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
	var second struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(client.messages[1].payload, &second); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if second.Fields["duration"] != 2.0 {
		t.Fatalf("expected duration in seconds, got %v", second.Fields["duration"])
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.disconnected {
		t.Fatal("expected Close to disconnect")
	}
}

func TestMQTTConnectFailure(t *testing.T) {
	client := &fakeClient{connectErr: errors.New("connection refused")}
	svc := newTestMQTT(client, config.Default().Notifications)
	if err := svc.Publish(context.Background(), EventRunStarted, nil); err == nil {
		t.Fatal("expected connect failure")
	}
	if len(client.messages) != 0 {
		t.Fatalf("expected nothing published, got %d", len(client.messages))
	}
}

func TestMQTTRespectsFilters(t *testing.T) {
	client := &fakeClient{}
	filters := config.Default().Notifications
	filters.BranchFailures = false
	svc := newTestMQTT(client, filters)
	if err := svc.Publish(context.Background(), EventBranchFailed, Payload{"branch": "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.connects != 0 || len(client.messages) != 0 {
		t.Fatalf("filtered event should not reach the broker")
	}
}

type recordingService struct {
	events []Event
	err    error
}

func (r *recordingService) Publish(_ context.Context, event Event, _ Payload) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingService) Close() error { return nil }

func TestMultiServiceDeliversToAllSinks(t *testing.T) {
	failing := &recordingService{err: errors.New("down")}
	ok := &recordingService{}
	svc := multiService{failing, ok}
	err := svc.Publish(context.Background(), EventRunFailed, nil)
	if err == nil {
		t.Fatal("expected joined error from failing sink")
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Fatalf("expected both sinks to receive the event")
	}
}

func TestNewServiceCombinesSinks(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "https://ntfy.example/courtside"
	cfg.MQTT.Enabled = true
	if _, ok := NewService(&cfg, nil).(multiService); !ok {
		t.Fatal("expected multi service when ntfy and mqtt are enabled")
	}
	cfg.MQTT.Enabled = false
	if _, ok := NewService(&cfg, nil).(*ntfyService); !ok {
		t.Fatal("expected ntfy service")
	}
}
