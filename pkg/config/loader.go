package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache holds one parsed value per configuration type.
type cache struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	globalCache = &cache{values: make(map[reflect.Type]any)}

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into v according to its `env` tags.
// The default .env file is read once if present. Each configuration type is
// parsed only once; later calls for the same type get the cached copy.
//
//	type Config struct {
//		StoreURL string `env:"STORE_URL,required"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultEnvLoaded.Do(func() {
		// .env is optional
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	globalCache.values[key] = parsed
	*v = parsed
	return nil
}

// MustLoad works like Load but panics on failure. Meant for startup.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadEnv reads the given env files into the process environment.
// Variables already set are not overridden.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// ResetCache drops every cached configuration. Used by tests that change
// the environment between loads.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	clear(globalCache.values)
}
