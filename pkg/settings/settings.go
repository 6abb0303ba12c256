// Package settings loads the daemon configuration and republishes it when the
// config file changes.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	KeyAlwaysShowMenuItem = "always-show-menuitem"
	KeyDebugMessages      = "debug-messages"
	KeyTeachIn            = "teach-in"
	KeyPollInterval       = "poll-interval"
	KeyReassertInterval   = "reassert-interval"
	KeyNameLookupTimeout  = "name-lookup-timeout"
	KeyNameResolver       = "name-resolver"
	KeyDevicesFile        = "devices-file"
	KeyRuleStore          = "rule-store"
	KeyDefaultSource      = "default-source"
	KeyEvdevXMLPath       = "evdev-xml-path"
	KeyMetricsAddress     = "metrics-address"
)

var ErrInvalid = errors.New("invalid settings")

type Settings struct {
	AlwaysShowMenuItem bool          `mapstructure:"always-show-menuitem"`
	DebugMessages      bool          `mapstructure:"debug-messages"`
	TeachIn            bool          `mapstructure:"teach-in"`
	PollInterval       time.Duration `mapstructure:"poll-interval"`
	ReassertInterval   time.Duration `mapstructure:"reassert-interval"`
	NameLookupTimeout  time.Duration `mapstructure:"name-lookup-timeout"`
	NameResolver       string        `mapstructure:"name-resolver"`
	DevicesFile        string        `mapstructure:"devices-file"`
	RuleStore          string        `mapstructure:"rule-store"`
	DefaultSource      string        `mapstructure:"default-source"`
	EvdevXMLPath       string        `mapstructure:"evdev-xml-path"`
	MetricsAddress     string        `mapstructure:"metrics-address"`
}

var Defaults = Settings{
	PollInterval:      250 * time.Millisecond,
	ReassertInterval:  30 * time.Second,
	NameLookupTimeout: 2 * time.Second,
	NameResolver:      "udevadm",
	DevicesFile:       "/proc/bus/input/devices",
	RuleStore:         "sqlite",
	EvdevXMLPath:      "/usr/share/X11/xkb/rules/evdev.xml",
}

func (s Settings) Validate() error {
	switch {
	case s.PollInterval <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyPollInterval)
	case s.ReassertInterval < 0:
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyReassertInterval)
	case s.NameLookupTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyNameLookupTimeout)
	}

	switch s.NameResolver {
	case "udevadm", "libudev", "none":
	default:
		return fmt.Errorf("%w: unknown %s %q", ErrInvalid, KeyNameResolver, s.NameResolver)
	}

	switch s.RuleStore {
	case "sqlite", "json", "memory":
	default:
		return fmt.Errorf("%w: unknown %s %q", ErrInvalid, KeyRuleStore, s.RuleStore)
	}

	return nil
}

// DefaultConfigFile is config.toml in the pluggedkbd config directory, which
// is created if missing.
func DefaultConfigFile() (string, error) {
	path, err := xdg.ConfigFile("pluggedkbd/config.toml")
	if err != nil {
		return "", fmt.Errorf("get config file path: %w", err)
	}
	return path, nil
}

// Manager owns a viper instance and the last valid Settings read from it.
type Manager struct {
	v   *viper.Viper
	log *zap.SugaredLogger

	lock      sync.Mutex
	current   Settings
	observers map[int]func(Settings)
	nextID    int
}

// New reads configFile, which may not exist. PLUGGEDKBD_* environment
// variables override it.
func New(configFile string, log *zap.SugaredLogger) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("toml")
	v.SetEnvPrefix("pluggedkbd")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyAlwaysShowMenuItem, Defaults.AlwaysShowMenuItem)
	v.SetDefault(KeyDebugMessages, Defaults.DebugMessages)
	v.SetDefault(KeyTeachIn, Defaults.TeachIn)
	v.SetDefault(KeyPollInterval, Defaults.PollInterval)
	v.SetDefault(KeyReassertInterval, Defaults.ReassertInterval)
	v.SetDefault(KeyNameLookupTimeout, Defaults.NameLookupTimeout)
	v.SetDefault(KeyNameResolver, Defaults.NameResolver)
	v.SetDefault(KeyDevicesFile, Defaults.DevicesFile)
	v.SetDefault(KeyRuleStore, Defaults.RuleStore)
	v.SetDefault(KeyDefaultSource, Defaults.DefaultSource)
	v.SetDefault(KeyEvdevXMLPath, Defaults.EvdevXMLPath)
	v.SetDefault(KeyMetricsAddress, Defaults.MetricsAddress)

	m := &Manager{
		v:         v,
		log:       log,
		observers: make(map[int]func(Settings)),
	}

	s, err := m.read()
	if err != nil {
		return nil, err
	}
	m.current = s

	return m, nil
}

func (m *Manager) read() (Settings, error) {
	err := m.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}

	var s Settings
	if err := m.v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// BindFlag lets a command line flag override key.
func (m *Manager) BindFlag(key string, flag *pflag.Flag) error {
	if err := m.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("bind flag %s: %w", flag.Name, err)
	}
	return m.Reload()
}

func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

func (m *Manager) Get() Settings {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.current
}

// OnChange registers fn to receive the settings after every change. The
// returned func detaches it.
func (m *Manager) OnChange(fn func(Settings)) (cancel func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.observers, id)
	}
}

// Reload re-reads the configuration. Invalid configurations are rejected and
// the previous settings stay in effect.
func (m *Manager) Reload() error {
	s, err := m.read()
	if err != nil {
		return err
	}

	m.lock.Lock()
	if reflect.DeepEqual(s, m.current) {
		m.lock.Unlock()
		return nil
	}
	m.current = s
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]func(Settings), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, m.observers[id])
	}
	m.lock.Unlock()

	for _, fn := range observers {
		fn(s)
	}
	return nil
}

// Watch reloads the settings whenever the config file is written.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		m.log.Debugw("config file changed", "file", e.Name, "op", e.Op.String())
		if err := m.Reload(); err != nil {
			m.log.Warnw("ignoring config change", "error", err)
		}
	})
	m.v.WatchConfig()
}
