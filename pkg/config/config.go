// Package config is the typed key/value configuration source. Values come
// from a TOML file, flattened to dotted keys, and can be overridden by
// ZENTALK_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/op/go-logging.v1"
)

// EnvPrefix prefixes environment overrides: server.port is read from
// ZENTALK_SERVER_PORT
const EnvPrefix = "ZENTALK_"

// Configuration keys
const (
	KeyCryptoKey             = "crypto.key"
	KeyPasswordPepper        = "password.pepper"
	KeyServerHost            = "server.host"
	KeyServerPort            = "server.port"
	KeyServerListen          = "server.listen"
	KeyMaxPendingConnections = "server.maxPendingConnections"
	KeyAuthTimeout           = "server.authTimeout"
	KeyDBDriver              = "db.driver"
	KeyDBURL                 = "db.url"
	KeyDBUser                = "db.user"
	KeyDBPassword            = "db.password"
	KeyAPIListen             = "api.listen"
	KeyLogFile               = "log.file"
	KeyLogLevel              = "log.level"
	KeyClientHost            = "client.host"
	KeyClientPort            = "client.port"
	KeyReconnectAttempts     = "client.reconnectAttempts"
	KeyInitialAttempts       = "client.initialAttempts"
	KeyHistoryPath           = "client.historyPath"
)

// Defaults
const (
	DefaultPepper                = "69D029BE4D8E0C42"
	DefaultServerHost            = "0.0.0.0"
	DefaultPort                  = 9451
	DefaultMaxPendingConnections = 8
	DefaultAuthTimeoutSeconds    = 60
	DefaultDBDriver              = "sqlite3"
	DefaultDBURL                 = "zentalk.db"
	DefaultLogLevel              = "NOTICE"
	DefaultClientHost            = "127.0.0.1"
	DefaultInitialAttempts       = 3
)

var ErrInvalidValue = errors.New("invalid config value")

// Source resolves configuration keys to typed values
type Source struct {
	mu     sync.Mutex
	values map[string]string
	warned map[string]bool
	lookup func(string) (string, bool)
	log    *logging.Logger
}

// New creates a source from already flattened values
func New(values map[string]string) *Source {
	s := &Source{
		values: make(map[string]string, len(values)),
		warned: make(map[string]bool),
		lookup: os.LookupEnv,
	}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Load parses a TOML document
func Load(b []byte) (*Source, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	values := make(map[string]string)
	flatten("", doc, values)
	return New(values), nil
}

// LoadFile reads and parses a TOML file. An empty path yields an empty
// source so that defaults and environment still apply.
func LoadFile(path string) (*Source, error) {
	if path == "" {
		return New(nil), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

func flatten(prefix string, in map[string]interface{}, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// SetLogger sets the logger used to report missing keys. Without one,
// missing keys fall back silently.
func (s *Source) SetLogger(l *logging.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// SetLookup replaces the environment lookup, os.LookupEnv by default
func (s *Source) SetLookup(lookup func(string) (string, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookup = lookup
}

// Set overrides a key, typically from a command line flag
func (s *Source) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Keys returns the keys present in the file or set explicitly
func (s *Source) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvName returns the environment variable that overrides key
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (s *Source) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup != nil {
		if v, ok := s.lookup(EnvName(key)); ok {
			return v, true
		}
	}

	v, ok := s.values[key]
	return v, ok
}

func (s *Source) missing(key string, def interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.warned[key] {
		return
	}
	s.warned[key] = true

	if s.log != nil {
		s.log.Warningf("Config key %q not set, using default %v", key, def)
	}
}

// String returns the value for key, or def when the key is not set
func (s *Source) String(key, def string) string {
	v, ok := s.get(key)
	if !ok {
		s.missing(key, strconv.Quote(def))
		return def
	}
	return v
}

// Int returns the value for key as an int, or def when the key is not set
// or does not parse
func (s *Source) Int(key string, def int) int {
	v, ok := s.get(key)
	if !ok {
		s.missing(key, def)
		return def
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.invalid(key, v, def)
		return def
	}
	return n
}

// Bool returns the value for key as a bool, or def when the key is not set
// or does not parse
func (s *Source) Bool(key string, def bool) bool {
	v, ok := s.get(key)
	if !ok {
		s.missing(key, def)
		return def
	}

	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		s.invalid(key, v, def)
		return def
	}
	return b
}

func (s *Source) invalid(key, value string, def interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.log != nil {
		s.log.Warningf("%v: %q for %q, using default %v", ErrInvalidValue, value, key, def)
	}
}

// Require returns the value for key or an error when it is not set
func (s *Source) Require(key string) (string, error) {
	v, ok := s.get(key)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required config key %q (or %s)", key, EnvName(key))
	}
	return v, nil
}
