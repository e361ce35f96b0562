package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"

	"dupsweep/internal/domain"
	"dupsweep/internal/services"
)

const (
	configDirName  = "dupsweep"
	configFileName = "config.ini"
)

func DefaultConfig() Config {
	return Config{
		ChunkSize: services.DefaultChunkSize,
		Recursive: true,
		SafeMode:  true,
		SortMode:  domain.SortBySize,
		Theme:     "dark",
		LogLevel:  "info",
	}
}

func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configDirName, configFileName), nil
}

func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom reads an INI file over the defaults. A missing file is not an error.
func LoadConfigFrom(path string) (Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return config, fmt.Errorf("failed to load config file: %w", err)
	}
	return mergeConfig(config, file), nil
}

func SaveConfig(config Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(path, config)
}

func SaveConfigTo(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file := ini.Empty()

	scan := file.Section("scan")
	scan.Key("min_size").SetValue(config.MinSize)
	scan.Key("max_size").SetValue(config.MaxSize)
	scan.Key("workers").SetValue(fmt.Sprint(config.Workers))
	scan.Key("chunk_size").SetValue(fmt.Sprint(config.ChunkSize))
	scan.Key("file_timeout").SetValue(config.FileTimeout.String())
	scan.Key("recursive").SetValue(fmt.Sprint(config.Recursive))
	scan.Key("show_hidden").SetValue(fmt.Sprint(config.ShowHidden))

	actions := file.Section("actions")
	actions.Key("safe_mode").SetValue(fmt.Sprint(config.SafeMode))
	actions.Key("last_destination").SetValue(config.LastDestination)

	ui := file.Section("ui")
	ui.Key("theme").SetValue(config.Theme)
	ui.Key("sort").SetValue(string(config.SortMode))

	log := file.Section("log")
	log.Key("level").SetValue(config.LogLevel)
	log.Key("file").SetValue(config.LogFile)

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// mergeConfig copies every key present in the file over base. Keys with values that
// do not parse keep the base value.
func mergeConfig(base Config, file *ini.File) Config {
	merged := base

	if file.HasSection("scan") {
		section := file.Section("scan")
		if section.HasKey("min_size") {
			merged.MinSize = section.Key("min_size").String()
		}
		if section.HasKey("max_size") {
			merged.MaxSize = section.Key("max_size").String()
		}
		if workers, err := section.Key("workers").Int(); err == nil && workers >= 0 {
			merged.Workers = workers
		}
		if chunk, err := section.Key("chunk_size").Int(); err == nil && chunk > 0 {
			merged.ChunkSize = chunk
		}
		if timeout, err := section.Key("file_timeout").Duration(); err == nil && timeout >= 0 {
			merged.FileTimeout = timeout
		}
		if recursive, err := section.Key("recursive").Bool(); err == nil {
			merged.Recursive = recursive
		}
		if hidden, err := section.Key("show_hidden").Bool(); err == nil {
			merged.ShowHidden = hidden
		}
	}

	if file.HasSection("actions") {
		section := file.Section("actions")
		if safe, err := section.Key("safe_mode").Bool(); err == nil {
			merged.SafeMode = safe
		}
		if section.HasKey("last_destination") {
			merged.LastDestination = section.Key("last_destination").String()
		}
	}

	if file.HasSection("ui") {
		section := file.Section("ui")
		if theme := section.Key("theme").String(); theme != "" {
			merged.Theme = theme
		}
		if section.HasKey("sort") {
			merged.SortMode = domainSortMode(section.Key("sort").String(), base.SortMode)
		}
	}

	if file.HasSection("log") {
		section := file.Section("log")
		if level := section.Key("level").String(); level != "" {
			merged.LogLevel = level
		}
		if section.HasKey("file") {
			merged.LogFile = section.Key("file").String()
		}
	}
	return merged
}

func domainSortMode(value string, fallback domain.SortMode) domain.SortMode {
	switch domain.SortMode(value) {
	case domain.SortBySize, domain.SortByPath, domain.SortByOriginal:
		return domain.SortMode(value)
	default:
		return fallback
	}
}
