package config

import (
	"os"
	"strings"
)

const EnvModeKey = "GO_ENV_MODE"

type EnvMode string

const (
	DevMode  EnvMode = "development"
	ProMode  EnvMode = "production"
	TestMode EnvMode = "test"
)

func ParseEnv(env string) EnvMode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// Mode returns the environment mode named by GO_ENV_MODE.
func Mode() EnvMode {
	return ParseEnv(os.Getenv(EnvModeKey))
}

// envFileNames lists the config file base names for mode, lowest priority
// first.
func envFileNames(fileName string, mode EnvMode) []string {
	names := []string{
		fileName,
		fileName + ".local",
		fileName + "." + string(mode),
		fileName + "." + string(mode) + ".local",
	}

	var aliases []string
	switch mode {
	case DevMode:
		aliases = []string{"dev"}
	case ProMode:
		aliases = []string{"pro", "prod"}
	case TestMode:
		aliases = nil
	}
	for _, alias := range aliases {
		names = append(names, fileName+"."+alias, fileName+"."+alias+".local")
	}
	return names
}
