package cache

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Backend names a Store implementation.
type Backend string

const (
	// BackendRedis keeps one Redis hash per tag. Shared across processes.
	BackendRedis Backend = "redis"
	// BackendMemory keeps entries in an in-process sturdyc client.
	BackendMemory Backend = "memory"
	// BackendBolt keeps entries in a bbolt file that lives as long as the process.
	BackendBolt Backend = "bolt"
)

// Environment variables consulted by LoadConfig. RedisURLEnv is read when
// AddressEnv is unset.
const (
	BackendEnv  = "QUERYCACHE_BACKEND"
	AddressEnv  = "QUERYCACHE_ADDRESS"
	RedisURLEnv = "REDIS_URL"
	PrefixEnv   = "QUERYCACHE_PREFIX"
	TTLEnv      = "QUERYCACHE_TTL"
	CodecEnv    = "QUERYCACHE_CODEC"
	KeysEnv     = "QUERYCACHE_KEYS"
)

// Config selects and tunes the cache store.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`
	// Address is a redis:// URL or host:port. Required for the redis backend.
	Address     string        `yaml:"address" json:"address"`
	Prefix      string        `yaml:"prefix" json:"prefix"`
	TTL         time.Duration `yaml:"ttl" json:"ttl"`
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
	// Codec is "json" or "msgpack".
	Codec string `yaml:"codec" json:"codec"`
	// KeySerializer is "json" or "xxhash".
	KeySerializer string       `yaml:"key_serializer" json:"key_serializer"`
	BoltDir       string       `yaml:"bolt_dir" json:"bolt_dir"`
	Memory        MemoryConfig `yaml:"memory" json:"memory"`
}

// MemoryConfig mirrors the sturdyc constructor arguments.
type MemoryConfig struct {
	Capacity           int           `yaml:"capacity" json:"capacity"`
	NumShards          int           `yaml:"num_shards" json:"num_shards"`
	TTL                time.Duration `yaml:"ttl" json:"ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage" json:"eviction_percentage"`
	EvictionInterval   time.Duration `yaml:"eviction_interval" json:"eviction_interval"`
}

// DefaultConfig returns a redis config pointing at a local server.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendRedis,
		Address:       "redis://127.0.0.1:6379/0",
		Prefix:        "querycache:",
		TTL:           DefaultTTL,
		DialTimeout:   5 * time.Second,
		MaxRetries:    3,
		Codec:         "json",
		KeySerializer: "json",
		Memory:        DefaultMemoryConfig(),
	}
}

// DefaultMemoryConfig returns sturdyc settings for a single service process.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks the configuration. The returned error is a go-errors
// validation error listing every offending field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend,
			validation.Required,
			validation.In(BackendRedis, BackendMemory, BackendBolt),
		),
		validation.Field(&c.Address,
			validation.When(c.Backend == BackendRedis,
				validation.Required,
				validation.By(validateRedisAddress),
			),
		),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.DialTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxRetries, validation.Min(-1)),
		validation.Field(&c.Codec, validation.In("json", "msgpack")),
		validation.Field(&c.KeySerializer, validation.In("json", "xxhash")),
		validation.Field(&c.Memory,
			validation.When(c.Backend == BackendMemory, validation.By(func(any) error {
				return c.Memory.check()
			})),
		),
	)
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, "invalid cache configuration")
}

func (m MemoryConfig) check() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&m.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&m.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&m.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&m.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

func validateRedisAddress(value any) error {
	addr, _ := value.(string)
	if addr == "" {
		return nil
	}
	if strings.Contains(addr, "://") {
		_, err := redis.ParseURL(addr)
		return err
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return errors.New("must be a redis:// URL or host:port")
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig and then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryInternal, "read cache config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse cache config")
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(BackendEnv); ok && v != "" {
		cfg.Backend = Backend(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(AddressEnv); ok {
		cfg.Address = strings.TrimSpace(v)
	} else if v, ok := lookup(RedisURLEnv); ok {
		cfg.Address = strings.TrimSpace(v)
	}
	if v, ok := lookup(PrefixEnv); ok {
		cfg.Prefix = v
	}
	if v, ok := lookup(TTLEnv); ok && v != "" {
		ttl, err := parseTTL(v)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "parse "+TTLEnv)
		}
		cfg.TTL = ttl
	}
	if v, ok := lookup(CodecEnv); ok && v != "" {
		cfg.Codec = v
	}
	if v, ok := lookup(KeysEnv); ok && v != "" {
		cfg.KeySerializer = v
	}
	return nil
}

// UnmarshalYAML lets duration fields be written as bare seconds, the same
// way QUERYCACHE_TTL accepts them.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if err := secondsToDuration(node, "ttl", "dial_timeout"); err != nil {
		return err
	}
	if memory := mappingValue(node, "memory"); memory != nil {
		if err := secondsToDuration(memory, "ttl", "eviction_interval"); err != nil {
			return err
		}
	}
	type plain Config
	return node.Decode((*plain)(c))
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// secondsToDuration rewrites integer scalars under keys into duration strings.
func secondsToDuration(node *yaml.Node, keys ...string) error {
	for _, key := range keys {
		value := mappingValue(node, key)
		if value == nil || value.Kind != yaml.ScalarNode || value.ShortTag() != "!!int" {
			continue
		}
		d, err := parseTTL(value.Value)
		if err != nil {
			return err
		}
		value.Tag = "!!str"
		value.Value = d.String()
	}
	return nil
}

// parseTTL accepts Go durations ("90s") and bare seconds ("60").
func parseTTL(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
