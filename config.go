package chathistory

import (
	"log/slog"
)

// Default capacity limits. These mirror the budgets the product shipped
// with: a 5 MiB serialized store, 20 threads of 50 messages each, and
// 800px/0.7-quality image recompression.
const (
	DefaultByteBudget     = 5 * 1024 * 1024
	DefaultMaxThreads     = 20
	DefaultMaxMessages    = 50
	DefaultImageMaxDim    = 800
	DefaultImageQuality   = 0.7
	DefaultNearLimitRatio = 0.8

	// Hard caps applied by the aggressive second trim when a serialized
	// store still exceeds the byte budget after regular trimming.
	hardCapThreads  = 10
	hardCapMessages = 20
)

// Limits bounds the persisted store. Zero values fall back to defaults.
type Limits struct {
	// ByteBudget is the maximum serialized size of the store, in bytes.
	ByteBudget int64 `yaml:"byteBudget"`

	// MaxThreads is the maximum number of threads kept in the store.
	MaxThreads int `yaml:"maxThreads"`

	// MaxMessages is the maximum number of messages kept per thread.
	MaxMessages int `yaml:"maxMessages"`

	// ImageMaxDim is the maximum length of an image's longer side, in
	// pixels, after downsampling.
	ImageMaxDim int `yaml:"imageMaxDim"`

	// ImageQuality is the JPEG quality factor (0-1) used when
	// re-encoding downsampled images.
	ImageQuality float64 `yaml:"imageQuality"`

	// NearLimitRatio is the fraction of ByteBudget above which the
	// store is considered near its limit and compresses new images
	// proactively.
	NearLimitRatio float64 `yaml:"nearLimitRatio"`
}

// withDefaults applies default values to the limits.
func (l Limits) withDefaults() Limits {
	if l.ByteBudget <= 0 {
		l.ByteBudget = DefaultByteBudget
	}
	if l.MaxThreads <= 0 {
		l.MaxThreads = DefaultMaxThreads
	}
	if l.MaxMessages <= 0 {
		l.MaxMessages = DefaultMaxMessages
	}
	if l.ImageMaxDim <= 0 {
		l.ImageMaxDim = DefaultImageMaxDim
	}
	if l.ImageQuality <= 0 || l.ImageQuality > 1 {
		l.ImageQuality = DefaultImageQuality
	}
	if l.NearLimitRatio <= 0 || l.NearLimitRatio >= 1 {
		l.NearLimitRatio = DefaultNearLimitRatio
	}
	return l
}

// Config configures a Store.
type Config struct {
	// KV is the storage medium threads are persisted to.
	// Required.
	KV KV

	// Limits bounds the persisted store.
	// Optional - zero values fall back to defaults.
	Limits Limits

	// Logger is the structured logger.
	// Optional - defaults to slog.Default().
	Logger *slog.Logger

	// Hooks receives store lifecycle notifications.
	// Optional.
	Hooks *HookRegistry
}

// withDefaults applies default values to the config.
func (c Config) withDefaults() Config {
	c.Limits = c.Limits.withDefaults()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Hooks == nil {
		c.Hooks = NewHookRegistry()
	}
	return c
}

// validate checks that required config fields are set.
func (c Config) validate() error {
	if c.KV == nil {
		return NewValidationError("KV storage is required", nil)
	}
	return nil
}
