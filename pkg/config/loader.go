package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cache       sync.Map // type name -> *cacheEntry
	dotenvOnce  sync.Once
	dotenvFiles = []string{".env"}
)

func loadDotenv() {
	dotenvOnce.Do(func() {
		// Missing .env files are fine; the process environment still applies.
		_ = godotenv.Load(dotenvFiles...)
	})
}

// Load parses environment variables into v. Each configuration type is parsed
// once per process; later calls receive a copy of the cached value, and a
// failed parse is cached as well.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDotenv()

	actual, _ := cache.LoadOrStore(typeName[T](), &cacheEntry{})
	entry := actual.(*cacheEntry)

	entry.once.Do(func() {
		var fresh T
		if err := env.Parse(&fresh); err != nil {
			entry.err = errors.Join(ErrParsingConfig, err)
			return
		}
		entry.value = fresh
	})

	if entry.err != nil {
		return entry.err
	}
	cached, ok := entry.value.(T)
	if !ok {
		return ErrConfigNotLoaded
	}
	*v = cached
	return nil
}

// Parse parses environment variables into v without caching.
// The environment is read with an optional variable name prefix.
func Parse[T any](v *T, prefix string) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDotenv()

	if err := env.ParseWithOptions(v, env.Options{Prefix: prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String()
}
