package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LifecyclePolicy carries every timing knob of the session lifecycle.
// Core logic receives an immutable snapshot, never the holder.
type LifecyclePolicy struct {
	AdminIdleTimeout     time.Duration `mapstructure:"adminIdleTimeout"`
	TenantIdleTimeout    time.Duration `mapstructure:"tenantIdleTimeout"`
	QueueSessionDuration time.Duration `mapstructure:"queueSessionDuration"`
	GracePeriod          time.Duration `mapstructure:"gracePeriod"`
	OrphanThreshold      time.Duration `mapstructure:"orphanThreshold"`
	RetentionWindow      time.Duration `mapstructure:"retentionWindow"`
	CSRFTokenTTL         time.Duration `mapstructure:"csrfTokenTTL"`
}

func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{
		AdminIdleTimeout:     30 * time.Minute,
		TenantIdleTimeout:    30 * time.Minute,
		QueueSessionDuration: 4 * time.Hour,
		GracePeriod:          15 * time.Minute,
		OrphanThreshold:      24 * time.Hour,
		RetentionWindow:      7 * 24 * time.Hour,
		CSRFTokenTTL:         2 * time.Hour,
	}
}

// LifecyclePolicyHolder hands out the current policy snapshot.
type LifecyclePolicyHolder struct {
	current atomic.Value // holds LifecyclePolicy
}

// NewLifecyclePolicyHolder reads lifecycle.yml when present and falls
// back to defaults, reloading on file change.
func NewLifecyclePolicyHolder() (*LifecyclePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("lifecycle")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/waitline/config") // Volume-mounted config
	v.AddConfigPath("/etc/waitline")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("WAITLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLifecyclePolicy()
	v.SetDefault("lifecycle.adminIdleTimeout", defaults.AdminIdleTimeout)
	v.SetDefault("lifecycle.tenantIdleTimeout", defaults.TenantIdleTimeout)
	v.SetDefault("lifecycle.queueSessionDuration", defaults.QueueSessionDuration)
	v.SetDefault("lifecycle.gracePeriod", defaults.GracePeriod)
	v.SetDefault("lifecycle.orphanThreshold", defaults.OrphanThreshold)
	v.SetDefault("lifecycle.retentionWindow", defaults.RetentionWindow)
	v.SetDefault("lifecycle.csrfTokenTTL", defaults.CSRFTokenTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy LifecyclePolicy
	if err := v.UnmarshalKey("lifecycle", &policy); err != nil {
		return nil, err
	}
	if err := validateLifecyclePolicy(policy); err != nil {
		return nil, err
	}

	holder := &LifecyclePolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LifecyclePolicy
		if err := v.UnmarshalKey("lifecycle", &updated); err != nil {
			log.Printf("[lifecycle-config] reload failed: %v", err)
			return
		}
		if err := validateLifecyclePolicy(updated); err != nil {
			log.Printf("[lifecycle-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[lifecycle-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticLifecyclePolicyHolder wraps a fixed policy, for tests and
// embedded callers that bypass file configuration.
func NewStaticLifecyclePolicyHolder(p LifecyclePolicy) *LifecyclePolicyHolder {
	holder := &LifecyclePolicyHolder{}
	holder.current.Store(p)
	return holder
}

func (h *LifecyclePolicyHolder) Get() LifecyclePolicy {
	return h.current.Load().(LifecyclePolicy)
}

func validateLifecyclePolicy(p LifecyclePolicy) error {
	if p.AdminIdleTimeout <= 0 || p.TenantIdleTimeout <= 0 {
		return errors.New("lifecycle idle timeouts must be positive")
	}
	if p.QueueSessionDuration <= 0 {
		return errors.New("lifecycle.queueSessionDuration must be positive")
	}
	if p.GracePeriod <= 0 || p.GracePeriod >= p.OrphanThreshold {
		return errors.New("lifecycle.gracePeriod must be positive and shorter than the orphan threshold")
	}
	if p.RetentionWindow <= p.OrphanThreshold {
		return errors.New("lifecycle.retentionWindow must exceed the orphan threshold")
	}
	return nil
}
