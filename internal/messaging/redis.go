package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pixel-pump/internal/logger"
)

const (
	StateHash       = "pump"
	StateChannel    = "pump"
	CommandList     = "pump:command"
	ReplyChannel    = "pump:reply"
	SettingsKey     = "pump:settings"
	ButtonsChannel  = "buttons"
	outboxSize      = 64
	brpopTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Callbacks struct {
	CommandCallback func(CommandRequest)
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	outbox    chan func(ctx context.Context) error
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	if l == nil {
		l = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l.WithTag("redis"),
		ctx:       ctx,
		cancel:    cancel,
		outbox:    make(chan func(ctx context.Context) error, outboxSize),
	}
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Warnf("Redis connection failed: %v", err)
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the command listener and the publisher.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	r.wg.Add(2)
	go r.publisher()
	go r.listCommandListener(CommandList, r.handleCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Short timeout so cancellation is noticed.
			result, err := r.client.BRPop(r.ctx, brpopTimeout, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				// Avoid spinning while Redis is down.
				select {
				case <-r.ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleCommand(value string) error {
	if r.callbacks.CommandCallback == nil {
		return nil
	}
	r.callbacks.CommandCallback(CommandRequest{
		Line:   value,
		Source: "redis",
		Reply:  func(line string) { r.PublishReply(line) },
	})
	return nil
}

// publisher drains the outbox so the control loop never waits on Redis.
func (r *RedisClient) publisher() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case op := <-r.outbox:
			if err := op(r.ctx); err != nil && r.ctx.Err() == nil {
				r.logger.Warnf("Publish failed: %v", err)
			}
		}
	}
}

func (r *RedisClient) enqueue(what string, op func(ctx context.Context) error) error {
	select {
	case r.outbox <- op:
		return nil
	default:
		return fmt.Errorf("outbox full, dropping %s", what)
	}
}

// publishHashSet atomically updates hash fields and publishes a notification.
func (r *RedisClient) publishHashSet(ctx context.Context, hash string, values map[string]interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, hash, values)
	pipe.Publish(ctx, channel, payload)
	_, err := pipe.Exec(ctx)
	return err
}

// PublishState queues the pump state for the "pump" hash and channel.
func (r *RedisClient) PublishState(s StateUpdate) error {
	r.logger.Debugf("Publishing pump state: %s", s.State)
	fields := s.Fields()
	fields["state:timestamp"] = time.Now().Format(time.RFC3339)
	return r.enqueue("state", func(ctx context.Context) error {
		return r.publishHashSet(ctx, StateHash, fields, StateChannel, "state")
	})
}

// PublishButtonEvent publishes a button event to the "buttons" channel.
func (r *RedisClient) PublishButtonEvent(event string) error {
	r.logger.Debugf("Publishing button event: %s", event)
	return r.enqueue("button event", func(ctx context.Context) error {
		return r.client.Publish(ctx, ButtonsChannel, event).Err()
	})
}

// PublishReply sends one command reply line.
func (r *RedisClient) PublishReply(line string) error {
	return r.enqueue("reply", func(ctx context.Context) error {
		return r.client.Publish(ctx, ReplyChannel, line).Err()
	})
}

// Settings returns a settings backend stored under a single Redis key.
// Reads and writes are synchronous; they only happen at startup and on
// explicit commits.
func (r *RedisClient) Settings() *RedisSettings {
	return &RedisSettings{client: r.client, ctx: r.ctx, key: SettingsKey}
}

type RedisSettings struct {
	client *redis.Client
	ctx    context.Context
	key    string
}

func (s *RedisSettings) Read() ([]byte, error) {
	data, err := s.client.Get(s.ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no settings stored at %s", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	return data, nil
}

func (s *RedisSettings) Write(data []byte) error {
	if err := s.client.Set(s.ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.key, err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(shutdownTimeout):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
