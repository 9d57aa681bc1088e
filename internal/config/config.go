// Package config centraliza o carregamento de configurações do gateway.
//
// Ordem de precedência: flags > env (ACCESSGATE_*) > arquivo > defaults.
// Um .env no diretório atual é carregado antes de tudo, sem sobrescrever o ambiente.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"access-gate/middleware/accessctl/domain"
)

const EnvPrefix = "ACCESSGATE"

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Bans        BansConfig        `mapstructure:"bans"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	UpstreamURL     string        `mapstructure:"upstream_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ConcurrencyConfig struct {
	// Max = 0 desliga o limite de requests em voo.
	Max     int           `mapstructure:"max"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LimitConfig struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

type QuotaConfig struct {
	Backend             string                 `mapstructure:"backend"`
	SweepInterval       time.Duration          `mapstructure:"sweep_interval"`
	RegistrationEnabled bool                   `mapstructure:"registration_enabled"`
	LoginEnabled        bool                   `mapstructure:"login_enabled"`
	RateLimitHeaders    bool                   `mapstructure:"rate_limit_headers"`
	Limits              map[string]LimitConfig `mapstructure:"limits"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StatsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Prefix           string        `mapstructure:"prefix"`
	TTL              time.Duration `mapstructure:"ttl"`
	Bucket           string        `mapstructure:"bucket"`
	TrackIdentifiers bool          `mapstructure:"track_identifiers"`
}

type BansConfig struct {
	Backend string `mapstructure:"backend"`
	Dialect string `mapstructure:"dialect"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
	Migrate bool   `mapstructure:"migrate"`
}

type IdentityConfig struct {
	UserHeader string `mapstructure:"user_header"`
	RoleHeader string `mapstructure:"role_header"`
}

type AdminConfig struct {
	Prefix    string  `mapstructure:"prefix"`
	PerMinute float64 `mapstructure:"per_minute"`
	Burst     int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// RouteConfig liga um método+padrão chi a uma categoria de cota e/ou ao gate de banimento.
type RouteConfig struct {
	Method      string `mapstructure:"method"`
	Path        string `mapstructure:"path"`
	Category    string `mapstructure:"category"`
	Identity    string `mapstructure:"identity"`
	BanCheck    bool   `mapstructure:"ban_check"`
	ExemptAdmin bool   `mapstructure:"exempt_admin"`
}

type GatewayConfig struct {
	Routes []RouteConfig `mapstructure:"routes"`
}

// DefaultRoutes espelha os consumidores da aplicação protegida.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		{Method: "POST", Path: "/api/auth/register", Category: "register", Identity: "ip"},
		{Method: "POST", Path: "/api/auth/callback/credentials", Category: "login", Identity: "ip"},
		{Method: "POST", Path: "/api/auth/admin-login", Category: "admin-login", Identity: "ip"},
		{Method: "GET", Path: "/api/support/tickets", Identity: "user", BanCheck: true},
		{Method: "POST", Path: "/api/support/tickets", Category: "support-ticket", Identity: "user", BanCheck: true},
		{Method: "GET", Path: "/api/support/tickets/{id}/messages", Identity: "user", BanCheck: true, ExemptAdmin: true},
		{Method: "POST", Path: "/api/support/tickets/{id}/messages", Category: "support-message", Identity: "user", BanCheck: true, ExemptAdmin: true},
		{Method: "POST", Path: "/api/upload", Category: "upload", Identity: "user", BanCheck: true, ExemptAdmin: true},
		{Method: "PATCH", Path: "/api/user/profile", Category: "profile-update", Identity: "user", BanCheck: true},
		{Method: "GET", Path: "/api/deals", Identity: "user", BanCheck: true},
		{Method: "POST", Path: "/api/deals", Identity: "user", BanCheck: true},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.upstream_url", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.timeout", "0s")

	v.SetDefault("quota.backend", "memory")
	v.SetDefault("quota.sweep_interval", "5m")
	v.SetDefault("quota.registration_enabled", true)
	v.SetDefault("quota.login_enabled", true)
	v.SetDefault("quota.rate_limit_headers", false)
	limits := make(map[string]any)
	for c, l := range domain.DefaultQuotaPolicy() {
		limits[string(c)] = map[string]any{"max": l.Max, "window": l.Window.String()}
	}
	v.SetDefault("quota.limits", limits)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.prefix", "accessgate:stats")
	v.SetDefault("stats.ttl", "24h")
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_identifiers", false)

	v.SetDefault("bans.backend", "memory")
	v.SetDefault("bans.dialect", "sqlite")
	v.SetDefault("bans.dsn", "file:accessgate.db?cache=shared")
	v.SetDefault("bans.table", "users")
	v.SetDefault("bans.migrate", true)

	v.SetDefault("identity.user_header", "X-User-Id")
	v.SetDefault("identity.role_header", "X-User-Role")

	// mesma cadência do endpoint admin do namelens: 10/min, burst 5
	v.SetDefault("admin.prefix", "/api/admin")
	v.SetDefault("admin.per_minute", 10)
	v.SetDefault("admin.burst", 5)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "accessgate")

	routes := make([]map[string]any, 0, len(DefaultRoutes()))
	for _, r := range DefaultRoutes() {
		routes = append(routes, map[string]any{
			"method":       r.Method,
			"path":         r.Path,
			"category":     r.Category,
			"identity":     r.Identity,
			"ban_check":    r.BanCheck,
			"exempt_admin": r.ExemptAdmin,
		})
	}
	v.SetDefault("gateway.routes", routes)
}

// NewViper prepara uma instância com defaults, env e (se informado) o arquivo.
func NewViper(configFile string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load lê a configuração de v e valida.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Gateway.Routes) == 0 {
		cfg.Gateway.Routes = DefaultRoutes()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if c.Concurrency.Max < 0 {
		errs = append(errs, errors.New("concurrency.max must be >= 0"))
	}

	switch c.Quota.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("quota.backend must be memory or redis, got %q", c.Quota.Backend))
	}
	if _, err := c.Quota.Policy(); err != nil {
		errs = append(errs, err)
	}
	if (c.Quota.Backend == "redis" || c.Stats.Enabled) && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("redis.addr is required when quota.backend=redis or stats.enabled=true"))
	}

	switch c.Bans.Backend {
	case "memory":
	case "sql":
		switch c.Bans.Dialect {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Errorf("bans.dialect must be sqlite or postgres, got %q", c.Bans.Dialect))
		}
		if strings.TrimSpace(c.Bans.DSN) == "" {
			errs = append(errs, errors.New("bans.dsn is required when bans.backend=sql"))
		}
	default:
		errs = append(errs, fmt.Errorf("bans.backend must be memory or sql, got %q", c.Bans.Backend))
	}

	if c.Admin.PerMinute <= 0 {
		errs = append(errs, errors.New("admin.per_minute must be > 0"))
	}
	if c.Admin.Burst <= 0 {
		errs = append(errs, errors.New("admin.burst must be > 0"))
	}
	if !strings.HasPrefix(c.Admin.Prefix, "/") {
		errs = append(errs, fmt.Errorf("admin.prefix must start with /, got %q", c.Admin.Prefix))
	}
	if strings.TrimSpace(c.Identity.UserHeader) == "" {
		errs = append(errs, errors.New("identity.user_header is required"))
	}

	for i, r := range c.Gateway.Routes {
		if err := r.validate(); err != nil {
			errs = append(errs, fmt.Errorf("gateway.routes[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateServe é Validate mais o que só o serve precisa (upstream).
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.UpstreamURL == "" {
		return errors.New("server.upstream_url is required")
	}
	u, err := url.Parse(c.Server.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server.upstream_url %q", c.Server.UpstreamURL)
	}
	return nil
}

// Policy sobrepõe os limites configurados aos de fábrica.
func (q QuotaConfig) Policy() (domain.QuotaPolicy, error) {
	p := domain.DefaultQuotaPolicy()
	for name, l := range q.Limits {
		c := domain.Category(name)
		if !c.Valid() {
			return nil, fmt.Errorf("quota.limits: unknown category %q", name)
		}
		p[c] = domain.Limit{Max: l.Max, Window: l.Window}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("quota.limits: %w", err)
	}
	return p, nil
}

func (q QuotaConfig) Settings() domain.Settings {
	return domain.Settings{
		RegistrationEnabled: q.RegistrationEnabled,
		LoginEnabled:        q.LoginEnabled,
	}
}

func (r RouteConfig) validate() error {
	switch strings.ToUpper(r.Method) {
	case "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("path must start with /, got %q", r.Path)
	}
	if r.Category != "" && !domain.Category(r.Category).Valid() {
		return fmt.Errorf("unknown category %q", r.Category)
	}
	switch r.Identity {
	case "ip", "user":
	default:
		return fmt.Errorf("identity must be ip or user, got %q", r.Identity)
	}
	if r.BanCheck && r.Identity != "user" {
		return errors.New("ban_check requires identity user")
	}
	if r.Category == "" && !r.BanCheck {
		return errors.New("route must set a category or ban_check")
	}
	return nil
}
