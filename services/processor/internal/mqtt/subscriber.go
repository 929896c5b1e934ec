package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/config"
	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/logging"
)

const (
	qosAtLeastOnce       = 1
	connectRetryInterval = 5 * time.Second
	subscribeTimeout     = 10 * time.Second
	disconnectQuiesceMS  = 250
)

// Handler processes one message payload.
type Handler interface {
	Handle(ctx context.Context, payload []byte) Outcome
}

// Subscriber keeps an MQTT session subscribed to the ingestion topic and
// dispatches messages to a Handler concurrently.
type Subscriber struct {
	client  paho.Client
	topic   string
	handler Handler
	logger  *zap.Logger

	mu       sync.Mutex
	baseCtx  context.Context
	inflight sync.WaitGroup
}

// NewSubscriber configures a client for cfg. Nothing connects until Run.
func NewSubscriber(cfg config.MQTTConfig, handler Handler, logger *zap.Logger) *Subscriber {
	s := &Subscriber{
		topic:   cfg.Topic,
		handler: handler,
		logger:  logging.OrNop(logger).Named("mqtt"),
		baseCtx: context.Background(),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetOrderMatters(false).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost)

	s.client = paho.NewClient(opts)
	return s
}

// Run connects and serves messages until ctx is done, then disconnects and
// waits for in-flight messages to finish.
func (s *Subscriber) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	token := s.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	s.client.Disconnect(disconnectQuiesceMS)
	s.inflight.Wait()
	s.logger.Info("mqtt subscriber stopped")
	return nil
}

func (s *Subscriber) onConnect(c paho.Client) {
	s.logger.Info("mqtt connected, subscribing", zap.String("topic", s.topic))
	token := c.Subscribe(s.topic, qosAtLeastOnce, s.onMessage)
	if !token.WaitTimeout(subscribeTimeout) {
		s.logger.Error("mqtt subscribe timed out", zap.String("topic", s.topic))
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("mqtt subscribe failed", zap.String("topic", s.topic), zap.Error(err))
	}
}

func (s *Subscriber) onConnectionLost(_ paho.Client, err error) {
	s.logger.Warn("mqtt connection lost, reconnecting", zap.Error(err))
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	s.inflight.Add(1)
	defer s.inflight.Done()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.handler.Handle(ctx, msg.Payload())
}
