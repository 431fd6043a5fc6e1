package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// ConnectOptions configures the client and the startup retry policy.
type ConnectOptions struct {
	Addr         string // ex: "localhost:6379"
	User         string
	Password     string
	RedisDB      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int

	ConnectTimeout time.Duration // total budget for all attempts (ex: 30s)
	RetryInterval  time.Duration // first backoff, doubled after each failure (ex: 2s)
	MaxWait        time.Duration // backoff cap (ex: 10s)
	PingTimeout    time.Duration // per attempt (ex: 2s)
	WarnThreshold  int           // attempts logged as warnings before escalating to errors
}

func (o ConnectOptions) validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"ConnectTimeout", o.ConnectTimeout},
		{"RetryInterval", o.RetryInterval},
		{"MaxWait", o.MaxWait},
		{"PingTimeout", o.PingTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("redis: %s must be > 0, got %v", d.name, d.value)
		}
	}
	if o.WarnThreshold < 0 {
		return fmt.Errorf("redis: WarnThreshold must be >= 0, got %d", o.WarnThreshold)
	}
	return nil
}

// backoff doubles from the initial wait up to max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) wait() time.Duration {
	w := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return w
}

// New returns a client once Redis answers PING. Attempts continue with
// exponential backoff until ConnectTimeout elapses or ctx is cancelled;
// the client is closed on failure.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.validate(); err != nil {
		log.Error("invalid redis options", logger.Error(err))
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	if err := waitReady(ctx, client, opts, log); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func waitReady(ctx context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis",
		logger.String("addr", opts.Addr),
		logger.Duration("timeout", opts.ConnectTimeout))

	start := time.Now()
	bo := backoff{next: opts.RetryInterval, max: opts.MaxWait}

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			fields := []logger.Field{logger.String("addr", opts.Addr)}
			if attempt > 1 {
				fields = append(fields, logger.Int("attempts", attempt), logger.Duration("elapsed", time.Since(start)))
			}
			log.Info("connected to redis", fields...)
			return nil
		}

		wait := bo.wait()
		fields := []logger.Field{
			logger.String("addr", opts.Addr),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err),
		}
		if attempt <= opts.WarnThreshold {
			log.Warn("redis connection failed, retrying", fields...)
		} else {
			log.Error("redis still unavailable, retrying", fields...)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unavailable",
				logger.String("addr", opts.Addr),
				logger.Int("attempts", attempt),
				logger.Duration("elapsed", time.Since(start)),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
		}
	}
}
