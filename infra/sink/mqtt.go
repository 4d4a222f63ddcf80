package sink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fieldcast/core/logger"
	"github.com/kilianp07/fieldcast/core/sink"
	infralogger "github.com/kilianp07/fieldcast/infra/logger"
)

// MQTTConfig defines the broker connection and publishing behaviour.
type MQTTConfig struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	Retain      bool        `json:"retain"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// SetDefaults applies sane defaults.
func (c *MQTTConfig) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fieldcast/predictions"
	}
	if c.ClientID == "" {
		c.ClientID = "fieldcast"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Message is the payload published for one variable and statistic of a run.
type Message struct {
	RunID      string        `json:"run_id"`
	Mode       string        `json:"mode"`
	Convention string        `json:"convention"`
	Var        string        `json:"var"`
	Stat       string        `json:"stat"`
	Records    []sink.Record `json:"records"`
}

// MQTTSink publishes runs on <prefix>/<run>/<var>/<stat>.
type MQTTSink struct {
	cli     pahoClient
	cfg     MQTTConfig
	backoff time.Duration
	log     logger.Logger
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := infralogger.New("mqtt-sink")
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected to %s", cfg.Broker) }
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTSink{
		cli:     c,
		cfg:     cfg,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:     log,
	}, nil
}

// NewClientOptions builds mqtt client options from MQTTConfig.
func NewClientOptions(cfg MQTTConfig) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt sink: broker required")
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, false)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c MQTTConfig) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Messages groups the records of run by variable and statistic, in first
// appearance order.
func Messages(run *sink.Run) []Message {
	var out []Message
	pos := map[[2]string]int{}
	for _, r := range run.Records {
		key := [2]string{r.Var, r.Stat}
		i, ok := pos[key]
		if !ok {
			i = len(out)
			pos[key] = i
			out = append(out, Message{RunID: run.ID, Mode: run.Mode, Convention: run.Convention, Var: r.Var, Stat: r.Stat})
		}
		out[i].Records = append(out[i].Records, r)
	}
	return out
}

// Topic returns the topic a message is published on.
func (s *MQTTSink) Topic(m Message) string {
	return path.Join(s.cfg.TopicPrefix, m.RunID, m.Var, m.Stat)
}

func (s *MQTTSink) Write(ctx context.Context, run *sink.Run) error {
	for _, m := range Messages(run) {
		payload, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := s.publish(ctx, s.Topic(m), payload); err != nil {
			return err
		}
	}
	return nil
}

// publish retries with exponential backoff.
func (s *MQTTSink) publish(ctx context.Context, topic string, payload []byte) error {
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		token := s.cli.Publish(topic, s.cfg.QoS, s.cfg.Retain, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			s.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		s.log.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, err)
		if attempt == s.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("publish %s: %w", topic, err)
}

// Close gracefully closes the MQTT connection.
func (s *MQTTSink) Close() error {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
	return nil
}
