package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Port         int64              `json:"port"`
	Session      SessionConfig      `json:"session"`
	Verification VerificationConfig `json:"verification"`
	SMSGateway   SMSGateway         `json:"sms_gateway"`
	RedisServer  RedisServer        `json:"redis_server"`
}

// SessionConfig bounds in-memory session growth. Idle sessions are swept
// once their TTL passes.
type SessionConfig struct {
	TTLSeconds   int64 `json:"ttl_seconds"`
	SweepSeconds int64 `json:"sweep_seconds"`
}

func (s SessionConfig) TTL() time.Duration {
	if s.TTLSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.TTLSeconds) * time.Second
}

func (s SessionConfig) SweepInterval() time.Duration {
	if s.SweepSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.SweepSeconds) * time.Second
}

type VerificationConfig struct {
	CodeTTLSeconds         int64 `json:"code_ttl_seconds"`
	DispatchTimeoutSeconds int64 `json:"dispatch_timeout_seconds"`
}

func (v VerificationConfig) CodeTTL() time.Duration {
	if v.CodeTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(v.CodeTTLSeconds) * time.Second
}

func (v VerificationConfig) DispatchTimeout() time.Duration {
	if v.DispatchTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(v.DispatchTimeoutSeconds) * time.Second
}

// SMSGateway holds the credentials for a Twilio-style messages API.
type SMSGateway struct {
	BaseURL    string `json:"base_url"`
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
}

// RedisServer configures the optional transcript recorder. An empty Addr
// disables it and the relay runs purely in memory.
type RedisServer struct {
	Addr     string `json:"addr"`
	User     string `json:"user"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LoadConfig loads the configuration from a file.
func LoadConfig(file string) (*Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("fail to open config file %s, err: %w", file, err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			fmt.Println("fail to close file", err)
		}
	}(f)
	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("fail to decode config file %s, err: %w", file, err)
	}
	return &cfg, nil
}
