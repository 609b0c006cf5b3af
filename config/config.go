package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Log         LogConfig      `yaml:"log"`
	Auth        AuthConfig     `yaml:"auth"`
	Minio       MinioConfig    `yaml:"minio"`
	Analysis    AnalysisConfig `yaml:"analysis"`
	Delivery    DeliveryConfig `yaml:"delivery"`
	Matching    MatchingConfig `yaml:"matching"`
	Dispatch    DispatchConfig `yaml:"dispatch"`
	Workflow    WorkflowConfig `yaml:"workflow"`
	Users       []User         `yaml:"users"`
	Contractors []Contractor   `yaml:"contractors"`
}

type ServerConfig struct {
	Port          int `yaml:"port"`
	RateLimit     int `yaml:"rate_limit"`      // requests per window per client
	RateWindowSec int `yaml:"rate_window_sec"` // window length in seconds
}

// RateWindow returns the rate limit window as a duration
func (s *ServerConfig) RateWindow() time.Duration {
	return time.Duration(s.RateWindowSec) * time.Second
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// AnalysisConfig configures the external categorization collaborator
type AnalysisConfig struct {
	APIURL        string  `yaml:"api_url"`
	APIToken      string  `yaml:"api_token"`
	MinConfidence float64 `yaml:"min_confidence"` // below this a bid card routes to review
}

// DeliveryConfig configures the external invitation delivery channel
type DeliveryConfig struct {
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"api_token"`
	Channel  string `yaml:"channel"`
}

// MatchingConfig holds the contractor scoring parameters. The composite
// score is similarity*SimilarityWeight + responsiveness*ResponsivenessWeight;
// weights are configuration, never hardcoded in the engine.
type MatchingConfig struct {
	SimilarityWeight     float64 `yaml:"similarity_weight"`
	ResponsivenessWeight float64 `yaml:"responsiveness_weight"`
	TopK                 int     `yaml:"top_k"`
}

// DispatchConfig bounds the invitation dispatcher
type DispatchConfig struct {
	BatchSize         int `yaml:"batch_size"`
	BatchPauseMS      int `yaml:"batch_pause_ms"`
	MaxAttempts       int `yaml:"max_attempts"`
	InitialIntervalMS int `yaml:"initial_interval_ms"`
}

// BatchPause returns the inter-batch pause as a duration
func (d *DispatchConfig) BatchPause() time.Duration {
	return time.Duration(d.BatchPauseMS) * time.Millisecond
}

// InitialInterval returns the first retry backoff interval as a duration
func (d *DispatchConfig) InitialInterval() time.Duration {
	return time.Duration(d.InitialIntervalMS) * time.Millisecond
}

// WorkflowConfig bounds composite joins and state-store retries
type WorkflowConfig struct {
	JoinTimeoutSec   int `yaml:"join_timeout_sec"`
	StateMaxAttempts int `yaml:"state_max_attempts"`
}

// JoinTimeout returns the parallel join timeout as a duration
func (w *WorkflowConfig) JoinTimeout() time.Duration {
	return time.Duration(w.JoinTimeoutSec) * time.Second
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	OwnerID  string `yaml:"owner_id"`
	Role     string `yaml:"role"`
}

// Contractor is one seeded contractor pool entry. The pool is externally
// maintained; config seeding stands in for the external profile feed the
// same way the Users list stands in for a user directory.
type Contractor struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Categories     []string `yaml:"categories"`
	ServiceZips    []string `yaml:"service_zips"`
	Responsiveness float64  `yaml:"responsiveness"`
	Available      bool     `yaml:"available"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Server.RateWindowSec == 0 {
		c.Server.RateWindowSec = 60
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Analysis.MinConfidence == 0 {
		c.Analysis.MinConfidence = 0.5
	}
	if c.Delivery.Channel == "" {
		c.Delivery.Channel = "email"
	}
	if c.Matching.SimilarityWeight == 0 && c.Matching.ResponsivenessWeight == 0 {
		c.Matching.SimilarityWeight = 0.7
		c.Matching.ResponsivenessWeight = 0.3
	}
	if c.Matching.TopK == 0 {
		c.Matching.TopK = 5
	}
	if c.Dispatch.BatchSize == 0 {
		c.Dispatch.BatchSize = 10
	}
	if c.Dispatch.BatchPauseMS == 0 {
		c.Dispatch.BatchPauseMS = 1000
	}
	if c.Dispatch.MaxAttempts == 0 {
		c.Dispatch.MaxAttempts = 3
	}
	if c.Dispatch.InitialIntervalMS == 0 {
		c.Dispatch.InitialIntervalMS = 200
	}
	if c.Workflow.JoinTimeoutSec == 0 {
		c.Workflow.JoinTimeoutSec = 30
	}
	if c.Workflow.StateMaxAttempts == 0 {
		c.Workflow.StateMaxAttempts = 3
	}
	for i := range c.Users {
		if c.Users[i].Role == "" {
			c.Users[i].Role = "homeowner"
		}
	}
}

func (c *Config) validate() error {
	if c.Matching.SimilarityWeight < 0 || c.Matching.ResponsivenessWeight < 0 {
		return fmt.Errorf("matching weights must be non-negative")
	}
	if c.Matching.TopK < 1 {
		return fmt.Errorf("matching top_k must be at least 1")
	}
	if c.Dispatch.BatchSize < 1 {
		return fmt.Errorf("dispatch batch_size must be at least 1")
	}
	if c.Dispatch.MaxAttempts < 1 {
		return fmt.Errorf("dispatch max_attempts must be at least 1")
	}
	for i, contractor := range c.Contractors {
		if contractor.ID == "" {
			return fmt.Errorf("contractors[%d] missing id", i)
		}
		if contractor.Responsiveness < 0 || contractor.Responsiveness > 1 {
			return fmt.Errorf("contractor %s responsiveness %v outside [0,1]", contractor.ID, contractor.Responsiveness)
		}
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
