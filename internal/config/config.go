package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by a shard process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	Shard   ShardConfig
	Call    CallConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Gateway GatewayConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// ShardConfig identifies this process within the horizontally partitioned fleet.
type ShardConfig struct {
	ID    int
	Count int
}

// CallConfig carries call lifecycle tunables.
type CallConfig struct {
	// RingTimeout is the window between notification delivery and automatic
	// missed-call termination.
	RingTimeout time.Duration

	// SupportNumber is the address of the customer-support line. Relays to it
	// disclose the author's raw user id.
	SupportNumber string

	// SupportRoleID is mentioned when a call reaches the support line.
	SupportRoleID string

	// SupportGuildID is the team server whose role grants map to relay
	// permission tiers. Empty disables tier resolution.
	SupportGuildID string

	// AliasNumbers maps short dial codes to full addresses, e.g. *611 to the
	// support line. Env format: "alias=number,alias=number".
	AliasNumbers map[string]string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for hosted-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// GatewayConfig points at the platform REST gateway used for message delivery.
type GatewayConfig struct {
	BaseURL string
	Token   string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	{
		n, err := mustInt("SHARD_ID")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Shard.ID = n
	}
	{
		n, err := mustInt("SHARD_COUNT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Shard.Count = n
	}

	// Ring timeout is optional; default applied in Validate().
	c.Call.RingTimeout = mustDuration("RING_TIMEOUT")
	c.Call.SupportNumber = strings.TrimSpace(os.Getenv("SUPPORT_NUMBER"))
	c.Call.SupportRoleID = strings.TrimSpace(os.Getenv("SUPPORT_ROLE_ID"))
	c.Call.SupportGuildID = strings.TrimSpace(os.Getenv("SUPPORT_GUILD_ID"))
	c.Call.AliasNumbers = parseAliasNumbers(os.Getenv("ALIAS_NUMBERS"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Gateway.BaseURL = strings.TrimSpace(os.Getenv("GATEWAY_BASE_URL"))
	c.Gateway.Token = os.Getenv("GATEWAY_TOKEN")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Shard.Count <= 0 {
		errs = append(errs, fmt.Errorf("SHARD_COUNT must be >= 1, got %d", c.Shard.Count))
	}
	if c.Shard.ID < 0 || (c.Shard.Count > 0 && c.Shard.ID >= c.Shard.Count) {
		errs = append(errs, fmt.Errorf("SHARD_ID must be in [0, SHARD_COUNT), got %d", c.Shard.ID))
	}

	if c.Call.RingTimeout <= 0 {
		// Default ring window before a call is marked missed.
		c.Call.RingTimeout = 2 * time.Minute
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			// Allowed values are enforced below.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("GATEWAY_BASE_URL is required"))
	}
	if c.Gateway.Token == "" && c.IsProduction() {
		errs = append(errs, errors.New("GATEWAY_TOKEN is required in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func parseAliasNumbers(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		alias, number, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		alias = strings.TrimSpace(alias)
		number = strings.TrimSpace(number)
		if alias == "" || number == "" {
			continue
		}
		out[alias] = number
	}
	return out
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
