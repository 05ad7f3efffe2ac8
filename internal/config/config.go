package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Gamification GamificationConfig
	SLA          SLAConfig
	Routing      RoutingConfig
	RateLimit    RateLimitConfig
	Sweeper      SweeperConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// GamificationConfig parameterizes the reporter ledger. Point amounts are
// configuration, never hardwired in the ledger itself.
type GamificationConfig struct {
	ReportPoints     int
	ResolvePoints    int
	BadgeBonusPoints int
	Badges           []domain.Badge
}

// SLAConfig maps severity to SLA and escalation-threshold hours.
type SLAConfig struct {
	HoursBySeverity           map[domain.IssueSeverity]int
	EscalationHoursBySeverity map[domain.IssueSeverity]int
}

// RoutingConfig declares category ownership and the escalation chain.
// Validated once at startup by the authority directory.
type RoutingConfig struct {
	CategoryAuthority map[domain.IssueCategory]domain.AuthorityType
	EscalationParents map[domain.AuthorityType]domain.AuthorityType
	DefaultAuthority  domain.AuthorityType
	ComplaintIDPrefix string
}

// RateLimitConfig caps issue reports per reporter per day.
type RateLimitConfig struct {
	ReportsPerDay int
}

// SweeperConfig controls the SLA breach sweep.
type SweeperConfig struct {
	Enabled         bool
	IntervalSeconds int
	BatchSize       int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "civic-issue-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Gamification: GamificationConfig{
			ReportPoints:     getEnvAsInt("POINTS_REPORT_ISSUE", 10),
			ResolvePoints:    getEnvAsInt("POINTS_RESOLVE_ISSUE", 50),
			BadgeBonusPoints: getEnvAsInt("POINTS_BADGE_EARNED", 25),
			Badges:           DefaultBadges(),
		},
		SLA: SLAConfig{
			HoursBySeverity: map[domain.IssueSeverity]int{
				domain.SeverityLow:      getEnvAsInt("SLA_HOURS_LOW", 72),
				domain.SeverityMedium:   getEnvAsInt("SLA_HOURS_MEDIUM", 48),
				domain.SeverityHigh:     getEnvAsInt("SLA_HOURS_HIGH", 24),
				domain.SeverityCritical: getEnvAsInt("SLA_HOURS_CRITICAL", 12),
			},
			EscalationHoursBySeverity: map[domain.IssueSeverity]int{
				domain.SeverityLow:      getEnvAsInt("ESCALATION_HOURS_LOW", 96),
				domain.SeverityMedium:   getEnvAsInt("ESCALATION_HOURS_MEDIUM", 72),
				domain.SeverityHigh:     getEnvAsInt("ESCALATION_HOURS_HIGH", 48),
				domain.SeverityCritical: getEnvAsInt("ESCALATION_HOURS_CRITICAL", 24),
			},
		},
		Routing:   DefaultRouting(),
		RateLimit: RateLimitConfig{ReportsPerDay: getEnvAsInt("RATE_LIMIT_REPORTS_PER_DAY", 20)},
		Sweeper: SweeperConfig{
			Enabled:         getEnvAsBool("SLA_SWEEPER_ENABLED", true),
			IntervalSeconds: getEnvAsInt("SLA_SWEEPER_INTERVAL_SECONDS", 300),
			BatchSize:       getEnvAsInt("SLA_SWEEPER_BATCH_SIZE", 50),
		},
	}
	cfg.Routing.ComplaintIDPrefix = getEnv("COMPLAINT_ID_PREFIX", cfg.Routing.ComplaintIDPrefix)

	return cfg, nil
}

// DefaultRouting returns the built-in category ownership and escalation chain.
func DefaultRouting() RoutingConfig {
	return RoutingConfig{
		CategoryAuthority: map[domain.IssueCategory]domain.AuthorityType{
			domain.CategoryPothole:     domain.AuthorityRoads,
			domain.CategoryStreetlight: domain.AuthorityElectricity,
			domain.CategoryWater:       domain.AuthorityWater,
			domain.CategoryTrain:       domain.AuthorityIRCTC,
			domain.CategoryGarbage:     domain.AuthorityGHMC,
			domain.CategoryOther:       domain.AuthorityGHMC,
		},
		EscalationParents: map[domain.AuthorityType]domain.AuthorityType{
			domain.AuthorityRoads:       domain.AuthorityGHMC,
			domain.AuthorityElectricity: domain.AuthorityGHMC,
			domain.AuthorityWater:       domain.AuthorityGHMC,
			domain.AuthorityIRCTC:       domain.AuthorityIRCTC,
			domain.AuthorityGHMC:        domain.AuthorityGHMC,
		},
		DefaultAuthority:  domain.AuthorityGHMC,
		ComplaintIDPrefix: "CIV",
	}
}

// DefaultBadges returns the built-in badge catalog.
func DefaultBadges() []domain.Badge {
	return []domain.Badge{
		{Name: "reports_5", Description: "Reported 5 issues", Metric: domain.BadgeMetricReports, Threshold: 5},
		{Name: "reports_10", Description: "Reported 10 issues", Metric: domain.BadgeMetricReports, Threshold: 10},
		{Name: "resolved_5", Description: "5 of your issues resolved", Metric: domain.BadgeMetricResolved, Threshold: 5},
		{Name: "resolved_10", Description: "10 of your issues resolved", Metric: domain.BadgeMetricResolved, Threshold: 10},
		{Name: "points_100", Description: "Earned 100 points", Metric: domain.BadgeMetricPoints, Threshold: 100},
		{Name: "points_500", Description: "Earned 500 points", Metric: domain.BadgeMetricPoints, Threshold: 500},
	}
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SLAFor returns the SLA window for a severity.
func (s SLAConfig) SLAFor(severity domain.IssueSeverity) time.Duration {
	hours, ok := s.HoursBySeverity[severity]
	if !ok {
		hours = 48
	}
	return time.Duration(hours) * time.Hour
}

// EscalationAfter returns how long after reporting an unresolved issue is
// auto-escalated. Always at or beyond the SLA window.
func (s SLAConfig) EscalationAfter(severity domain.IssueSeverity) time.Duration {
	hours, ok := s.EscalationHoursBySeverity[severity]
	if !ok {
		hours = 72
	}
	threshold := time.Duration(hours) * time.Hour
	if sla := s.SLAFor(severity); threshold < sla {
		return sla
	}
	return threshold
}

// Interval returns the sweep interval duration.
func (s SweeperConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
