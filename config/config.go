package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/leeforge/huddle-media/utils"
)

// EnvPrefix prefixes every environment override, e.g. HUDDLE_SERVER_ADDR.
const EnvPrefix = "HUDDLE"

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: EnvPrefix,
		Mode:      Mode(),
		OnChange:  nil,
	}
}

func NewConfig(optsArr ...ConfigOptions) (*Config, error) {
	var opts ConfigOptions
	if len(optsArr) == 0 {
		opts = DefaultConfigOptions()
	} else {
		opts = optsArr[0]
	}
	if opts.FileName == "" {
		opts.FileName = "config"
	}
	if opts.FileType == "" {
		opts.FileType = "yaml"
	}
	if opts.Mode == "" {
		opts.Mode = Mode()
	}

	instance, files, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Config{
		instance: instance,
		opts:     opts,
		files:    files,
	}, nil
}

// Files returns the config files that were merged, lowest priority first.
func (c *Config) Files() []string {
	return append([]string(nil), c.files...)
}

// Bind unmarshals the configuration into instance, which must be a pointer
// to a struct. Environment variables are bound for every mapstructure key of
// the struct, so they apply even when no config file sets the key.
func (c *Config) Bind(instance any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("config instance is nil")
	}

	if instance == nil {
		return fmt.Errorf("target instance is nil")
	}

	bindStructEnv(c.instance, reflect.TypeOf(instance), "")

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	if err := c.instance.Unmarshal(instance); err != nil {
		return fmt.Errorf("failed to unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}

	return nil
}

// BindWithDefaults fills defaults before and after Bind.
func (c *Config) BindWithDefaults(instance any) error {
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}

	if err := c.Bind(instance); err != nil {
		return err
	}

	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults after unmarshal: %w", err)
	}

	if v, ok := instance.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// Watch re-reads the config files on change and calls onChange with a
// freshly bound copy produced by newInstance. Only the files that existed
// at load time are watched.
func (c *Config) Watch(newInstance func() any, onChange func(instance any, e fsnotify.Event)) error {
	if len(c.files) == 0 {
		return fmt.Errorf("no config file to watch in %s", c.opts.BasePath)
	}

	c.watchOnce.Do(func() {
		// viper watches a single file; the highest priority one wins.
		c.instance.SetConfigFile(c.files[len(c.files)-1])
		c.instance.WatchConfig()
		c.instance.OnConfigChange(func(e fsnotify.Event) {
			if err := c.reload(); err != nil {
				fmt.Fprintf(os.Stderr, "config watch error: %v\n", err)
				return
			}

			instance := newInstance()
			if err := c.BindWithDefaults(instance); err != nil {
				fmt.Fprintf(os.Stderr, "config watch error: %v\n", err)
				return
			}
			if onChange != nil {
				onChange(instance, e)
			}
			if c.opts.OnChange != nil {
				c.opts.OnChange(e)
			}
		})
	})
	return nil
}

func (c *Config) reload() error {
	fresh, _, err := CreateConfig(c.opts)
	if err != nil {
		return err
	}

	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	for _, key := range fresh.AllKeys() {
		c.instance.Set(key, fresh.Get(key))
	}
	return nil
}

func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()

	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()

	c.instance.Set(key, value)
}

// CreateConfig merges every config file that exists for opts, in priority
// order, and layers environment overrides on top. Having no config file at
// all is not an error.
func CreateConfig(opts ConfigOptions) (*viper.Viper, []string, error) {
	configPaths := getConfigFilePaths(opts)

	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, configPath := range configPaths {
		tempV := viper.New()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}

		for _, key := range tempV.AllKeys() {
			v.Set(key, tempV.Get(key))
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	// Override with environment variables (higher priority than config files)
	applyEnvOverrides(v, opts.EnvPrefix)

	return v, configPaths, nil
}

// envKey converts a config key to its env var name: server.max-body-bytes ->
// HUDDLE_SERVER_MAX_BODY_BYTES.
func envKey(key, envPrefix string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if envPrefix != "" {
		name = envPrefix + "_" + name
	}
	return name
}

// applyEnvOverrides checks all config keys and overrides with environment variables if they exist.
// This ensures environment variables have higher priority than config file values.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		if envValue := os.Getenv(envKey(key, envPrefix)); envValue != "" {
			v.Set(key, envValue)
		}
	}
}

// bindStructEnv registers every mapstructure key of t with viper so that
// AutomaticEnv can see keys no config file mentions. Map fields are not
// descended into.
func bindStructEnv(v *viper.Viper, t reflect.Type, prefix string) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := field.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			bindStructEnv(v, ft, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

func getConfigFilePaths(opts ConfigOptions) (configFiles []string) {
	mode := opts.Mode
	if mode == "" {
		mode = Mode()
	}

	seen := make(map[string]struct{})
	for _, fileName := range envFileNames(opts.FileName, mode) {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if _, ok := seen[file]; ok {
			continue
		}
		seen[file] = struct{}{}
		if utils.IsFile(file) {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}
