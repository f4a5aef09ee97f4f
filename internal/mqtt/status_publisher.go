package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/unusual-audio/workbench/internal/config"
	"github.com/unusual-audio/workbench/internal/logger"
)

// Diagnostic is the payload published on the diagnostic topic. Codes reuse
// the SCPI numbering where one applies; code 0 is informational.
type Diagnostic struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusPublisher publishes server availability and diagnostics to an MQTT
// broker. This is an operator-facing side channel: the SCPI wire itself stays
// strictly pull-based, clients there poll SYSTem:ERRor? as usual.
type StatusPublisher struct {
	client paho.Client
	config *config.MQTTConfig
}

// NewStatusPublisher creates a publisher with a last-will that marks the
// server offline when the broker loses the connection
func NewStatusPublisher(cfg *config.MQTTConfig) *StatusPublisher {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)

	// Use keep_alive from config, default to 60 seconds if not specified
	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60
	}
	opts.SetKeepAlive(time.Duration(keepAlive) * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Last Will and Testament marks the server offline on an unclean disconnect
	opts.SetWill(cfg.StatusTopic, "offline", 1, true)

	publisher := &StatusPublisher{config: cfg}

	opts.SetOnConnectHandler(func(client paho.Client) {
		logger.LogInfo("Status publisher connected to MQTT broker")
		if token := client.Publish(cfg.StatusTopic, 1, true, "online"); token.Wait() && token.Error() != nil {
			logger.LogWarn("Error publishing online status on connect: %v", token.Error())
		}
	})

	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		logger.LogError("Status publisher disconnected: %v", err)
	})

	publisher.client = paho.NewClient(opts)
	return publisher
}

// Connect connects the publisher to the broker, retrying until ctx is
// cancelled
func (p *StatusPublisher) Connect(ctx context.Context) error {
	retryDelay := time.Duration(p.config.RetryDelay) * time.Millisecond
	if retryDelay == 0 {
		retryDelay = 5000 * time.Millisecond // Default 5 seconds
	}

	attempt := 1
	for {
		logger.LogDebug("Attempting to connect status publisher to MQTT broker (attempt %d)...", attempt)

		if token := p.client.Connect(); token.Wait() && token.Error() != nil {
			logger.LogError("Status publisher connection failed (attempt %d): %v", attempt, token.Error())
			logger.LogInfo("Retrying in %.0f seconds...", retryDelay.Seconds())
			select {
			case <-ctx.Done():
				return fmt.Errorf("status publisher connection cancelled: %w", ctx.Err())
			case <-time.After(retryDelay):
				attempt++
				continue
			}
		}
		return nil
	}
}

// Disconnect closes the broker connection after flushing in-flight messages
func (p *StatusPublisher) Disconnect() {
	p.client.Disconnect(250)
}

// PublishStatusOnline publishes the retained "online" availability message
func (p *StatusPublisher) PublishStatusOnline(ctx context.Context) error {
	return p.publish(ctx, p.config.StatusTopic, 1, true, "online")
}

// PublishStatusOffline publishes the retained "offline" availability message
func (p *StatusPublisher) PublishStatusOffline(ctx context.Context) error {
	return p.publish(ctx, p.config.StatusTopic, 1, true, "offline")
}

// PublishDiagnostic publishes a (code, message) diagnostic as JSON
func (p *StatusPublisher) PublishDiagnostic(ctx context.Context, code int, message string) error {
	payload, err := json.Marshal(Diagnostic{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("error encoding diagnostic: %w", err)
	}
	return p.publish(ctx, p.config.DiagnosticTopic, 0, false, payload)
}

// publish sends one message and waits for completion or context cancellation
func (p *StatusPublisher) publish(ctx context.Context, topic string, qos byte, retained bool, payload interface{}) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	token := p.client.Publish(topic, qos, retained, payload)
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("publish to %s cancelled: %w", topic, ctx.Err())
	case <-done:
		if err := token.Error(); err != nil {
			return fmt.Errorf("error publishing to %s: %w", topic, err)
		}
		return nil
	}
}
