package model

import (
	"strings"
	"time"
)

const (
	DefaultPresenceInterval = 20 * time.Second
	DefaultTrafficInterval  = 20 * time.Second
	DefaultSystemInterval   = 90 * time.Second

	minInterval = 5 * time.Second
)

// RouterConfig is a normalized integration configuration payload as
// delivered by the host platform. Version increases on every change.
type RouterConfig struct {
	Version             int64     `json:"version"`
	UpdatedAt           time.Time `json:"updated_at"`
	Host                string    `json:"host"`
	Username            string    `json:"username"`
	Password            string    `json:"password"`
	VerifyTLS           bool      `json:"verify_tls"`
	PresenceIntervalSec int       `json:"presence_interval_sec"`
	TrafficIntervalSec  int       `json:"traffic_interval_sec"`
	SystemIntervalSec   int       `json:"system_interval_sec"`
}

func (c RouterConfig) HasCredentials() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

func (c RouterConfig) PresenceInterval() time.Duration {
	return interval(c.PresenceIntervalSec, DefaultPresenceInterval)
}

func (c RouterConfig) TrafficInterval() time.Duration {
	return interval(c.TrafficIntervalSec, DefaultTrafficInterval)
}

func (c RouterConfig) SystemInterval() time.Duration {
	return interval(c.SystemIntervalSec, DefaultSystemInterval)
}

func interval(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	value := time.Duration(seconds) * time.Second
	if value < minInterval {
		return minInterval
	}
	return value
}
