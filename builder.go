package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/castlefell/authcore/ledger"
	"github.com/castlefell/authcore/password"
	"github.com/castlefell/authcore/token"
)

// Builder assembles an [Engine]. Configure it with the With* methods and
// call Build once; a builder cannot be reused.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store CredentialStore
	mail  MailSender
	sink  AuditSink

	built bool
}

// New returns a [Builder] seeded with default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the refresh token ledger.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the account storage adapter.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithMailSender sets the outbound mail adapter used for verification and
// reset messages.
func (b *Builder) WithMailSender(sender MailSender) *Builder {
	b.mail = sender
	return b
}

// WithAuditSink sets the destination for audit events. Without a sink,
// audit events are discarded even when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the internal components, and
// returns a ready [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	signer, err := token.NewManager(token.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Params{
		MemoryKB:   cfg.Password.MemoryKB,
		Iterations: cfg.Password.Iterations,
		Threads:    cfg.Password.Threads,
		SaltBytes:  cfg.Password.SaltBytes,
		KeyBytes:   cfg.Password.KeyBytes,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		store:   b.store,
		ledger:  ledger.NewStore(b.redis, cfg.Ledger.RedisPrefix),
		signer:  signer,
		hasher:  hasher,
		mail:    b.mail,
		audit:   newAuditDispatcher(cfg.auditConfig(), b.sink),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true
	return engine, nil
}
