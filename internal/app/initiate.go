package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/segmentio/kafka-go"
	"github.com/shandysiswandi/smsotp/internal/pkg/clock"
	"github.com/shandysiswandi/smsotp/internal/pkg/config"
	"github.com/shandysiswandi/smsotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/smsotp/internal/pkg/instrument"
	"github.com/shandysiswandi/smsotp/internal/pkg/messaging"
	"github.com/shandysiswandi/smsotp/internal/pkg/otp"
	"github.com/shandysiswandi/smsotp/internal/pkg/router"
	"github.com/shandysiswandi/smsotp/internal/pkg/sms"
	"github.com/shandysiswandi/smsotp/internal/pkg/uid"
	"github.com/shandysiswandi/smsotp/internal/pkg/validator"
	"github.com/shandysiswandi/smsotp/migrations"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	defaultConfigPath = "./config/config.yaml"
	scopePubSub       = "https://www.googleapis.com/auth/pubsub"
	pingTimeout       = 5 * time.Second
)

var errUnknownSMSDriver = errors.New("unknown sms driver")

// envAliases are environment variables kept from earlier deployments.
var envAliases = map[string]string{
	"sms.bulksmsgh.api_key":   "BULK_SMS_API_KEY",
	"sms.bulksmsgh.sender_id": "BULK_SMS_SENDER_ID",
}

func (a *App) initConfig(context.Context) error {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		return err
	}
	for key, env := range envAliases {
		if err := cfg.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		if err := os.Setenv("TZ", tz); err != nil {
			return err
		}
	}

	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })
	return nil
}

func (a *App) initInstrument(ctx context.Context) error {
	c := a.config
	ins, err := instrument.New(ctx, &instrument.Config{
		Enabled:          c.GetBool("instrument.enabled"),
		ServiceName:      c.GetString("instrument.service_name"),
		ServiceVersion:   c.GetString("instrument.service_version"),
		Environment:      c.GetString("instrument.env"),
		OTLPEndpoint:     c.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       c.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: c.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  c.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       c.GetArray("instrument.log_mask_fields"),
		LogLevel:         c.GetString("instrument.log_level"),
	})
	if err != nil {
		return err
	}

	a.ins = ins
	a.onClose("instrument", ins.Shutdown)
	return nil
}

func (a *App) initLibraries(context.Context) error {
	v, err := validator.NewV10Validator()
	if err != nil {
		return err
	}
	gen, err := otp.NewNumeric(6)
	if err != nil {
		return err
	}

	a.validator = v
	a.otp = gen
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	return nil
}

func (a *App) driver(key string) string {
	return strings.ToLower(strings.TrimSpace(a.config.GetString(key)))
}

func (a *App) initDatabase(ctx context.Context) error {
	if a.driver("modules.verification.store.driver") != "postgres" {
		return nil
	}

	pc, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	pc.MaxConns = a.config.GetInt32("database.pool.max_conns")
	pc.MinConns = a.config.GetInt32("database.pool.min_conns")
	pc.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	pc.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	pc.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return err
	}
	a.dbConn = pool
	a.onClose("database", func(context.Context) error { pool.Close(); return nil })

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if !a.config.GetBool("database.auto_migrate") {
		return nil
	}

	stmts, err := migrations.Statements()
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	slog.InfoContext(ctx, "database migrations applied", "count", len(stmts))
	return nil
}

func (a *App) initCache(ctx context.Context) error {
	if a.driver("modules.verification.store.driver") != "redis" &&
		a.driver("modules.verification.lock.driver") != "redis" {
		return nil
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	a.cacheConn = rdb
	a.onClose("redis", func(context.Context) error { return rdb.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (a *App) pubsubOptions(ctx context.Context) ([]option.ClientOption, error) {
	c := a.config
	var opts []option.ClientOption

	if c.GetBool("messaging.pubsub.without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}

	credsJSON := c.GetBinary("messaging.pubsub.credentials_json")
	if path := strings.TrimSpace(c.GetString("messaging.pubsub.credentials_file")); path != "" && len(credsJSON) == 0 {
		// #nosec G304 -- path comes from the operator's config
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pubsub credentials: %w", err)
		}
		credsJSON = b
	}
	if len(credsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, credsJSON, scopePubSub)
		if err != nil {
			return nil, fmt.Errorf("parse pubsub credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	if endpoint := strings.TrimSpace(c.GetString("messaging.pubsub.endpoint")); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts, nil
}

func (a *App) initMessaging(ctx context.Context) error {
	c := a.config
	driver := a.driver("messaging.driver")

	var opts messaging.Options
	switch driver {
	case messaging.DriverNSQ:
		pc := nsq.NewConfig()
		pc.DialTimeout = c.GetSecond("messaging.nsq.producer_config.dial_timeout_seconds")
		pc.ReadTimeout = c.GetSecond("messaging.nsq.producer_config.read_timeout_seconds")
		pc.WriteTimeout = c.GetSecond("messaging.nsq.producer_config.write_timeout_seconds")
		opts.NSQ = messaging.NSQConfig{ProducerAddr: c.GetString("messaging.nsq.producer_addr"), ProducerConfig: pc}
	case messaging.DriverNATS:
		opts.NATS = messaging.NATSConfig{
			URL: c.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(c.GetString("messaging.nats.name")),
				nats.MaxReconnects(c.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(c.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(c.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.RetryOnFailedConnect(c.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		}
	case messaging.DriverKafka:
		opts.Kafka = messaging.KafkaConfig{
			Brokers: c.GetArray("messaging.kafka.brokers"),
			Dialer: &kafka.Dialer{
				ClientID: c.GetString("messaging.kafka.client_id"),
				Timeout:  c.GetSecond("messaging.kafka.dial_timeout_seconds"),
			},
		}
	case messaging.DriverGooglePubSub:
		clientOpts, err := a.pubsubOptions(ctx)
		if err != nil {
			return err
		}
		opts.PubSub = messaging.PubSubConfig{
			ProjectID:     c.GetString("messaging.pubsub.project_id"),
			ClientOptions: clientOpts,
		}
	}

	client, err := messaging.New(ctx, driver, opts)
	if err != nil {
		return err
	}

	a.messaging = client
	a.onClose("messaging", func(context.Context) error { return client.Close() })
	return nil
}

func (a *App) initSMS(context.Context) error {
	c := a.config

	switch driver := a.driver("sms.driver"); driver {
	case "", "bulksmsgh":
		a.sms = sms.NewBulkSMSGH(sms.BulkSMSGHConfig{
			BaseURL: c.GetString("sms.bulksmsgh.base_url"),
			Timeout: c.GetSecond("sms.timeout_seconds"),
			// read per call so rotated secrets apply without a restart
			Credentials: func() (string, string) {
				return strings.TrimSpace(c.GetString("sms.bulksmsgh.api_key")),
					strings.TrimSpace(c.GetString("sms.bulksmsgh.sender_id"))
			},
		})
	case "log":
		slog.Warn("sms driver is log, verification codes are not delivered")
		a.sms = sms.NewLog()
	default:
		return fmt.Errorf("%w: %q", errUnknownSMSDriver, driver)
	}

	a.onClose("sms", func(context.Context) error { return a.sms.Close() })
	return nil
}

func (a *App) initHTTPServer(context.Context) error {
	c := a.config
	a.router = router.NewRouter(router.Config{
		Config:     c,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	origins := c.GetArray("app.server.cors")
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		OptionsSuccessStatus: http.StatusOK,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              c.GetString("app.server.http.address"),
		Handler:           handler,
		ReadTimeout:       c.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: c.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      c.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       c.GetSecond("app.server.http.idle_timeout_seconds"),
	}
	return nil
}
