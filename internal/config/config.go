// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Значения по умолчанию для параметров, которые читаются «мягко»:
// некорректное значение не валит старт, а заменяется дефолтом.
const (
	DefaultAccessTokenTTL   = 15 * time.Minute
	DefaultRefreshTokenDays = 1
	DefaultBcryptCost       = 10
)

// Дефолты полей, для которых нулевое значение осмысленно (false, 0 - выключено).
// env-default на них не ставится: cleanenv подставил бы его поверх нуля из YAML.
const (
	DefaultCookieSecure      = true
	DefaultRateLimitRequests = 20
	DefaultJanitorPeriod     = 30 * time.Minute
)

// Config - корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
//
// Перед чтением подгружается .env из рабочей директории, если он есть.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Cookie    CookieConfig    `yaml:"cookie"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Janitor   JanitorConfig   `yaml:"janitor"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// TimeoutConfig - таймауты сервиса.
type TimeoutConfig struct {
	Service  time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig - сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host              string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port              string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath          string        `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов и хэширования секретов.
//
// Сроки жизни и стоимость bcrypt хранятся строками: их разбор выполняют
// методы AccessTokenTTL, RefreshTokenDays и BcryptCost с откатом на дефолт.
type AuthConfig struct {
	AccessSecret   string   `yaml:"access_secret" env:"JWT_SECRET"`
	RefreshSecret  string   `yaml:"refresh_secret" env:"JWT_REFRESH_TOKEN_SECRET"`
	AccessTTL      string   `yaml:"access_token_ttl" env:"JWT_EXPIRES_IN" env-default:"15m"`
	RefreshTTLDays string   `yaml:"refresh_token_ttl_days" env:"JWT_REFRESH_TOKEN_EXPIRES_IN_NUMBER_OF_DAYS" env-default:"1"`
	HashCost       string   `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
	Issuer         string   `yaml:"issuer" env:"JWT_ISSUER" env-default:"clinic-auth-service"`
	Audience       []string `yaml:"audience" env:"JWT_AUDIENCE" env-default:"clinic-api"`
}

// Единицы, которых нет в time.ParseDuration.
var longUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// AccessTokenTTL возвращает срок жизни access-токена.
// Принимает формат time.ParseDuration, суффиксы дней и недель ("1d", "2w")
// и число без единиц как количество секунд ("3600").
func (a AuthConfig) AccessTokenTTL() time.Duration {
	raw := strings.TrimSpace(a.AccessTTL)

	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 {
			return DefaultAccessTokenTTL
		}

		return time.Duration(n) * time.Second
	}

	for suffix, unit := range longUnits {
		if num, ok := strings.CutSuffix(raw, suffix); ok {
			n, err := strconv.Atoi(num)
			if err != nil || n <= 0 {
				return DefaultAccessTokenTTL
			}

			return time.Duration(n) * unit
		}
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return DefaultAccessTokenTTL
	}

	return d
}

// RefreshTokenDays возвращает срок жизни refresh-токена в днях.
func (a AuthConfig) RefreshTokenDays() int {
	n, err := strconv.Atoi(strings.TrimSpace(a.RefreshTTLDays))
	if err != nil || n <= 0 {
		return DefaultRefreshTokenDays
	}

	return n
}

// RefreshTokenTTL возвращает срок жизни refresh-токена.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenDays()) * 24 * time.Hour
}

// BcryptCost возвращает стоимость bcrypt в допустимом диапазоне.
func (a AuthConfig) BcryptCost() int {
	n, err := strconv.Atoi(strings.TrimSpace(a.HashCost))
	if err != nil || n < bcrypt.MinCost || n > bcrypt.MaxCost {
		return DefaultBcryptCost
	}

	return n
}

// EnsureSecrets подставляет случайные секреты вместо незаданных.
// Возвращает имена сгенерированных секретов: токены, подписанные ими,
// перестают быть валидными после рестарта процесса.
func (a *AuthConfig) EnsureSecrets() ([]string, error) {
	const op = "config.EnsureSecrets"

	var generated []string

	for _, s := range []struct {
		name string
		dst  *string
	}{
		{"JWT_SECRET", &a.AccessSecret},
		{"JWT_REFRESH_TOKEN_SECRET", &a.RefreshSecret},
	} {
		if *s.dst != "" {
			continue
		}

		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		*s.dst = hex.EncodeToString(b)
		generated = append(generated, s.name)
	}

	return generated, nil
}

// CookieConfig - атрибуты cookie, в которой клиенту отдаётся refresh-токен.
// Secure по умолчанию true (DefaultCookieSecure).
type CookieConfig struct {
	Name     string `yaml:"name" env:"REFRESH_COOKIE_NAME" env-default:"jwt"`
	Secure   bool   `yaml:"secure" env:"REFRESH_COOKIE_SECURE"`
	SameSite string `yaml:"same_site" env:"REFRESH_COOKIE_SAMESITE" env-default:"strict"`
}

// DBConfig - настройки подключения к базе данных и пула соединений.
type DBConfig struct {
	DatabaseURL     string        `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	MaxConns        int32         `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"20"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" env-default:"30s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT" env-default:"2s"`
	AcquireTimeout  time.Duration `yaml:"acquire_timeout" env:"DB_ACQUIRE_TIMEOUT" env-default:"2s"`
	MigrateOnStart  bool          `yaml:"migrate_on_start" env:"DB_MIGRATE_ON_START" env-default:"false"`
}

// RedisConfig - кэш публичных профилей. Пустой URL отключает кэш.
type RedisConfig struct {
	RedisURL   string        `yaml:"redis_url" env:"REDIS_URL"`
	ProfileTTL time.Duration `yaml:"profile_ttl" env:"REDIS_PROFILE_TTL" env-default:"5m"`
}

// CORSConfig - разрешённые источники для браузерных клиентов.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// RateLimitConfig - ограничение частоты запросов к auth-маршрутам с одного IP.
// Requests == 0 отключает лимит, по умолчанию DefaultRateLimitRequests.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// TelemetryConfig - экспорт трейсов по OTLP/HTTP. Пустой endpoint отключает экспорт.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"clinic-auth-service"`
}

// JanitorConfig - период фоновой очистки просроченных refresh-токенов (0 - выключено).
// По умолчанию DefaultJanitorPeriod.
type JanitorConfig struct {
	Period time.Duration `yaml:"period" env:"JANITOR_PERIOD"`
}

// MustLoad - обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	// .env не переопределяет уже выставленные переменные окружения.
	_ = godotenv.Load()

	// 1) Явный путь.
	if path != "" {
		return readFile(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	// 4) Только ENV.
	cfg := defaults()
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return cfg, nil
}

// defaults заполняет поля, чей ноль задаётся явно. YAML перезаписывает
// только присутствующие ключи, ENV - только выставленные переменные.
func defaults() *Config {
	return &Config{
		Cookie:    CookieConfig{Secure: DefaultCookieSecure},
		RateLimit: RateLimitConfig{Requests: DefaultRateLimitRequests},
		Janitor:   JanitorConfig{Period: DefaultJanitorPeriod},
	}
}

// readFile читает YAML; cleanenv.ReadConfig сам накладывает поверх него ENV.
func readFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file does not exist: %q: %w", path, err)
	}

	cfg := defaults()
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return cfg, nil
}
