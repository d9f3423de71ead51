// Package broker is the AMQP front end for the simulator: it owns the
// exchange/queue topology, pulls one command at a time off the command
// queue, hands it to the dispatcher, and republishes outbound events on the
// response routing key.
//
// Grounded on the teacher's gRPC server lifecycle (pkg/server/server.go):
// the same connect-then-serve-then-waitForShutdown shape, generalized from a
// listening gRPC socket to an AMQP connection since there is no RPC
// framework on this wire, only a topic exchange.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"shipnetsim/pkg/config"
	"shipnetsim/pkg/logger"
	"shipnetsim/pkg/metrics"
	"shipnetsim/pkg/telemetry"
	"shipnetsim/services/shipnetsim-svc/internal/dispatch"
)

// channel is the subset of *amqp.Channel the server needs, narrowed to an
// interface so the connect/consume/publish paths can be exercised against a
// fake in tests without a live broker.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// closer abstracts the underlying AMQP connection so Close can tear it down
// without Run needing the concrete type.
type closer interface {
	Close() error
}

// Server owns one AMQP connection and channel, consumes the command queue,
// and publishes the dispatcher's outbound events on the response queue.
type Server struct {
	cfg        config.BrokerConfig
	dispatcher *dispatch.Dispatcher

	conn closer
	ch   channel

	busyMu sync.Mutex
	busy   bool

	closeOnce sync.Once
}

// New returns a Server that will route commands through dispatcher once Run
// establishes the broker connection.
func New(cfg config.BrokerConfig, dispatcher *dispatch.Dispatcher) *Server {
	return &Server{cfg: cfg, dispatcher: dispatcher}
}

// Busy reports whether the server is currently inside a dispatch call. It
// mirrors the worker_busy gate conceptually, but the actual back-pressure
// is enforced declaratively by the channel's QoS prefetch of 1: RabbitMQ
// will not push a second message until the first is acknowledged, so the
// consumer never needs to poll-and-yield the way a synchronous client would.
func (s *Server) Busy() bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	return s.busy
}

func (s *Server) setBusy(b bool) {
	s.busyMu.Lock()
	s.busy = b
	s.busyMu.Unlock()
}

// connectWithRetries dials the broker up to cfg.ConnectMaxAttempts times,
// declaring the full exchange/queue topology on the first channel that
// opens cleanly. Each failed attempt tears down whatever it managed to open
// before backing off.
func (s *Server) connectWithRetries(ctx context.Context) error {
	attempts := s.cfg.ConnectMaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	backoff := s.cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := amqp.Dial(s.cfg.URL())
		if err != nil {
			lastErr = err
		} else if ch, chErr := conn.Channel(); chErr != nil {
			lastErr = chErr
			conn.Close()
		} else if topoErr := declareTopology(ch, s.cfg); topoErr != nil {
			lastErr = topoErr
			ch.Close()
			conn.Close()
		} else if qosErr := ch.Qos(1, 0, false); qosErr != nil {
			lastErr = qosErr
			ch.Close()
			conn.Close()
		} else {
			s.conn, s.ch = conn, ch
			logger.Log.Info("broker: connected", "host", s.cfg.Address(), "attempt", attempt)
			return nil
		}

		logger.Log.Warn("broker: connect attempt failed", "attempt", attempt, "max", attempts, "error", lastErr)
		if m := metrics.Get(); m != nil {
			m.RecordReconnect()
		}
		if attempt < attempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("broker: failed to connect after %d attempts: %w", attempts, lastErr)
}

// declareTopology declares the durable topic exchange and the command and
// response queues, bound to their respective routing keys.
func declareTopology(ch channel, cfg config.BrokerConfig) error {
	exchangeType := cfg.ExchangeType
	if exchangeType == "" {
		exchangeType = "topic"
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.CommandQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare command queue: %w", err)
	}
	if err := ch.QueueBind(cfg.CommandQueue, cfg.CommandRoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind command queue: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.ResponseQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare response queue: %w", err)
	}
	if err := ch.QueueBind(cfg.ResponseQueue, cfg.ResponseRoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind response queue: %w", err)
	}
	return nil
}

// Run connects (retrying per connectWithRetries) and then consumes the
// command queue until ctx is cancelled or the connection drops. Every
// delivery is acknowledged immediately and dispatched synchronously, so at
// most one command is ever in flight.
func (s *Server) Run(ctx context.Context) error {
	if err := s.connectWithRetries(ctx); err != nil {
		return err
	}

	deliveries, err := s.ch.Consume(s.cfg.CommandQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume: %w", err)
	}

	var notifyClose chan *amqp.Error
	if realConn, ok := s.conn.(*amqp.Connection); ok {
		notifyClose = realConn.NotifyClose(make(chan *amqp.Error, 1))
	}

	logger.Log.Info("broker: consuming", "queue", s.cfg.CommandQueue, "exchange", s.cfg.Exchange)

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr, ok := <-notifyClose:
			if !ok || amqpErr == nil {
				return nil
			}
			return fmt.Errorf("broker: connection closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("broker: delivery channel closed")
			}
			s.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery acknowledges the message, then dispatches its body
// synchronously. Acking before dispatch matches the at-most-one-reply
// contract: a crash mid-dispatch must not cause RabbitMQ to redeliver a
// command whose side effects may have already landed.
func (s *Server) handleDelivery(ctx context.Context, d amqp.Delivery) {
	s.setBusy(true)
	defer s.setBusy(false)

	if err := d.Ack(false); err != nil {
		logger.Log.Warn("broker: ack failed", "error", err)
	}

	ctx, span := telemetry.StartSpan(ctx, "broker.handleDelivery")
	defer span.End()

	s.dispatcher.Dispatch(ctx, d.Body)
}

// PublishEvent serializes name/data into the §6 envelope shape
// ({"event", "host", ...payload}) and publishes it on the response routing
// key, retrying transient failures. Wire this as the coordinator's OnEvent
// hook so every outbound signal reaches the response queue.
func (s *Server) PublishEvent(name string, data any) {
	payload, err := buildEnvelope(name, s.cfg.ServiceName, data)
	if err != nil {
		logger.Log.Error("broker: failed to marshal outbound event", "event", name, "error", err)
		return
	}

	if err := s.publishWithRetry(payload); err != nil {
		logger.Log.Error("broker: failed to publish event", "event", name, "error", err)
		if m := metrics.Get(); m != nil {
			m.RecordPublishFailure(s.cfg.ResponseRoutingKey)
		}
	}
}

// buildEnvelope flattens data's fields alongside "event" and "host". Most
// event payloads are already maps or structs that marshal to a JSON object;
// anything else is nested under "data" rather than discarded.
func buildEnvelope(name, host string, data any) ([]byte, error) {
	fields := map[string]any{"event": name, "host": host}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		var extra map[string]any
		if err := json.Unmarshal(raw, &extra); err == nil {
			for k, v := range extra {
				fields[k] = v
			}
		} else {
			fields["data"] = data
		}
	}

	return json.Marshal(fields)
}

func (s *Server) publishWithRetry(payload []byte) error {
	attempts := s.cfg.PublishMaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := s.cfg.PublishBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if s.ch == nil {
			lastErr = errors.New("broker: channel not connected")
		} else {
			lastErr = s.ch.Publish(s.cfg.Exchange, s.cfg.ResponseRoutingKey, false, false, amqp.Publishing{
				ContentType: "application/json",
				Body:        payload,
				Timestamp:   time.Now(),
			})
			if lastErr == nil {
				return nil
			}
		}
		if attempt < attempts {
			time.Sleep(backoff)
		}
	}
	return fmt.Errorf("broker: publish failed after %d attempts: %w", attempts, lastErr)
}

// Close tears the channel and connection down exactly once, in that order.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.ch != nil {
			if e := s.ch.Close(); e != nil {
				err = e
			}
		}
		if s.conn != nil {
			if e := s.conn.Close(); e != nil && err == nil {
				err = e
			}
		}
	})
	return err
}
