package messaging

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"pixel-pump/internal/logger"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
)

type MQTTOptions struct {
	Broker    string
	ClientID  string
	BaseTopic string
}

// MQTTPublisher mirrors the pump state to an MQTT broker and accepts command
// lines on <base>/command.
type MQTTPublisher struct {
	client    paho.Client
	baseTopic string
	logger    *logger.Logger
	callbacks Callbacks
}

func NewMQTTPublisher(opts MQTTOptions, l *logger.Logger, callbacks Callbacks) *MQTTPublisher {
	if l == nil {
		l = logger.Discard()
	}
	p := &MQTTPublisher{
		baseTopic: opts.BaseTopic,
		logger:    l.WithTag("mqtt"),
		callbacks: callbacks,
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(p.AvailabilityTopic(), PayloadOffline, 1, true)
	co.OnConnect = p.onConnect
	co.OnConnectionLost = func(_ paho.Client, err error) {
		p.logger.Warnf("Connection lost: %v", err)
	}
	p.client = paho.NewClient(co)
	return p
}

func (p *MQTTPublisher) StateTopic() string        { return p.baseTopic + "/state" }
func (p *MQTTPublisher) EventsTopic() string       { return p.baseTopic + "/events" }
func (p *MQTTPublisher) CommandTopic() string      { return p.baseTopic + "/command" }
func (p *MQTTPublisher) ReplyTopic() string        { return p.baseTopic + "/reply" }
func (p *MQTTPublisher) AvailabilityTopic() string { return p.baseTopic + "/availability" }

func (p *MQTTPublisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return errors.New("MQTT connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	p.logger.Infof("Connected to MQTT broker")
	return nil
}

// onConnect runs on every (re)connect.
func (p *MQTTPublisher) onConnect(c paho.Client) {
	p.publish(p.AvailabilityTopic(), 1, true, []byte(PayloadOnline))
	if p.callbacks.CommandCallback == nil {
		return
	}
	token := c.Subscribe(p.CommandTopic(), 1, func(_ paho.Client, msg paho.Message) {
		p.callbacks.CommandCallback(CommandRequest{
			Line:   string(msg.Payload()),
			Source: "mqtt",
			Reply:  func(line string) { p.PublishReply(line) },
		})
	})
	go func() {
		if !token.WaitTimeout(mqttPublishTimeout) {
			p.logger.Warnf("Subscribe to %s timed out", p.CommandTopic())
		} else if err := token.Error(); err != nil {
			p.logger.Warnf("Subscribe to %s failed: %v", p.CommandTopic(), err)
		}
	}()
}

// publish never blocks the caller; delivery errors are logged.
func (p *MQTTPublisher) publish(topic string, qos byte, retained bool, payload []byte) {
	token := p.client.Publish(topic, qos, retained, payload)
	go func() {
		if !token.WaitTimeout(mqttPublishTimeout) {
			p.logger.Warnf("Publish to %s timed out", topic)
		} else if err := token.Error(); err != nil {
			p.logger.Warnf("Publish to %s failed: %v", topic, err)
		}
	}()
}

// PublishState sends the retained state document.
func (p *MQTTPublisher) PublishState(s StateUpdate) error {
	payload, err := s.JSON()
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	p.publish(p.StateTopic(), 1, true, payload)
	return nil
}

func (p *MQTTPublisher) PublishButtonEvent(event string) error {
	p.publish(p.EventsTopic(), 0, false, []byte(event))
	return nil
}

func (p *MQTTPublisher) PublishReply(line string) error {
	p.publish(p.ReplyTopic(), 0, false, []byte(line))
	return nil
}

// Close announces the pump offline and disconnects.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		token := p.client.Publish(p.AvailabilityTopic(), 1, true, PayloadOffline)
		token.WaitTimeout(time.Second)
	}
	p.client.Disconnect(1000)
	return nil
}
