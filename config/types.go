package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Validator is implemented by bound structs with rules beyond struct tags.
type Validator interface {
	Validate() error
}

// Config wraps the merged viper instance for one set of ConfigOptions.
type Config struct {
	instance   *viper.Viper
	opts       ConfigOptions
	files      []string
	watchOnce  sync.Once
	watchMutex sync.RWMutex
}

// ConfigOptions locates the config files: <BasePath>/<FileName>[.<mode>][.local].<FileType>.
type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	Mode      EnvMode
	// OnChange runs after every successful reload started by Watch.
	OnChange func(e fsnotify.Event)
}
