// Package env overlays environment variables on top of a persistent
// configuration store.
//
// Every key can be overridden with PAPERSOUL_<KEY>, dots replaced by
// underscores (PAPERSOUL_CHAT_TEMPERATURE for chat.temperature). A few
// unprefixed names from earlier deployments are honoured as well.
// Environment values win over the file but are never written back to it.
package env

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Prefix is the environment prefix for all overridable keys.
const Prefix = "PAPERSOUL"

// Ensure Overlay implements the interface.
var _ driven.ConfigStore = (*Overlay)(nil)

// legacyEnv lists unprefixed variables accepted per key, in priority order.
var legacyEnv = map[string][]string{
	"chat.temperature": {"CHAT_TEMPERATURE"},
	"retrieval.top_k":  {"RETRIEVAL_TOP_K"},
	"embedding.model":  {"ARK_EMBED_MODEL"},
}

// providerKeyEnv lists API key variables that only apply to one provider.
var providerKeyEnv = map[string]map[domain.AIProvider][]string{
	"llm.api_key": {
		domain.AIProviderOpenAI:    {"OPENAI_API_KEY"},
		domain.AIProviderAnthropic: {"ANTHROPIC_API_KEY"},
	},
	"embedding.api_key": {
		domain.AIProviderOpenAI: {"ARK_API_KEY", "OPENAI_API_KEY"},
	},
}

// Overlay is a driven.ConfigStore that consults the environment before
// delegating to an inner store. Writes always go to the inner store.
type Overlay struct {
	inner driven.ConfigStore
	v     *viper.Viper
}

// NewOverlay wraps inner with environment lookups.
func NewOverlay(inner driven.ConfigStore) *Overlay {
	v := viper.New()
	v.SetEnvPrefix(Prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		bind(v, key, append([]string{envName(key)}, names...)...)
	}
	for key, byProvider := range providerKeyEnv {
		for provider, names := range byProvider {
			bind(v, providerKey(key, provider), names...)
		}
	}

	return &Overlay{inner: inner, v: v}
}

func bind(v *viper.Viper, key string, names ...string) {
	if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
		logger.Warn("bind env for %s: %v", key, err)
	}
}

func envName(key string) string {
	return Prefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func providerKey(key string, provider domain.AIProvider) string {
	return "provider_env." + provider.String() + "." + key
}

// lookup returns the raw environment value for key, if any.
func (o *Overlay) lookup(key string) (string, bool) {
	if o.v.IsSet(key) {
		return o.v.GetString(key), true
	}
	if _, ok := providerKeyEnv[key]; ok {
		section := strings.SplitN(key, ".", 2)[0]
		provider := domain.AIProvider(o.GetString(section + ".provider"))
		if pk := providerKey(key, provider); o.v.IsSet(pk) {
			return o.v.GetString(pk), true
		}
	}
	return "", false
}

// Source reports where the value of key comes from: "env", "file" or "".
func (o *Overlay) Source(key string) string {
	if _, ok := o.lookup(key); ok {
		return "env"
	}
	if _, ok := o.inner.Get(key); ok {
		return "file"
	}
	return ""
}

// Get retrieves a configuration value by key.
func (o *Overlay) Get(key string) (any, bool) {
	if s, ok := o.lookup(key); ok {
		return s, true
	}
	return o.inner.Get(key)
}

// GetString retrieves a string configuration value.
func (o *Overlay) GetString(key string) string {
	if s, ok := o.lookup(key); ok {
		return s
	}
	return o.inner.GetString(key)
}

// GetInt retrieves an integer configuration value. Unparseable environment
// values are ignored.
func (o *Overlay) GetInt(key string) int {
	if s, ok := o.lookup(key); ok {
		n, err := cast.ToIntE(s)
		if err == nil {
			return n
		}
		logger.Warn("ignoring %s=%q: %v", envName(key), s, err)
	}
	return o.inner.GetInt(key)
}

// GetFloat retrieves a floating point configuration value.
func (o *Overlay) GetFloat(key string) float64 {
	if s, ok := o.lookup(key); ok {
		f, err := cast.ToFloat64E(s)
		if err == nil {
			return f
		}
		logger.Warn("ignoring %s=%q: %v", envName(key), s, err)
	}
	return o.inner.GetFloat(key)
}

// GetBool retrieves a boolean configuration value.
func (o *Overlay) GetBool(key string) bool {
	if s, ok := o.lookup(key); ok {
		b, err := cast.ToBoolE(s)
		if err == nil {
			return b
		}
		logger.Warn("ignoring %s=%q: %v", envName(key), s, err)
	}
	return o.inner.GetBool(key)
}

// GetStringSlice retrieves a string slice. Environment values are split on
// whitespace.
func (o *Overlay) GetStringSlice(key string) []string {
	if s, ok := o.lookup(key); ok {
		if parts, err := cast.ToStringSliceE(s); err == nil {
			return parts
		}
	}
	return o.inner.GetStringSlice(key)
}

// Set stores a value in the inner store.
func (o *Overlay) Set(key string, value any) error {
	return o.inner.Set(key, value)
}

// Save persists the inner store.
func (o *Overlay) Save() error {
	return o.inner.Save()
}

// Load reloads the inner store.
func (o *Overlay) Load() error {
	return o.inner.Load()
}

// Path returns the inner store's file path.
func (o *Overlay) Path() string {
	return o.inner.Path()
}
