package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"gridseis"
)

const (
	configName   = "config"
	configSuffix = ".yaml"
	logName      = "gridseis.log"
)

// expandHome 把路径里的第一个 "$HOME" 换成用户主目录
func expandHome(dir string) (string, error) {
	if !strings.Contains(dir, "$HOME") {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return strings.Replace(dir, "$HOME", home, 1), nil
}

// makeFileExist 确保 dir/filename 存在，必要时创建目录和空文件
func makeFileExist(dir, filename string) (string, error) {
	dir, err := expandHome(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0775); err != nil {
		return "", err
	}
	fullname := filepath.Join(dir, filename)
	if _, err := os.Stat(fullname); os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper 让 v 读取 dir/config.yaml
// 文件为空时先写入默认配置，方便用户直接编辑
func setupViper(v *viper.Viper, dir string) error {
	fullname, err := makeFileExist(dir, configName+configSuffix)
	if err != nil {
		return err
	}
	info, err := os.Stat(fullname)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		if err := writeDefaultConfig(fullname); err != nil {
			return err
		}
	}

	v.SetConfigFile(fullname)
	v.SetEnvPrefix("GRIDSEIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func writeDefaultConfig(fullname string) error {
	data, err := yaml.Marshal(gridseis.DefaultConfig())
	if err != nil {
		return err
	}
	header := []byte("# GridSeis configuration\n")
	return os.WriteFile(fullname, append(header, data...), 0664)
}

// loadConfig 在默认值之上合并 viper 读到的配置
func loadConfig(v *viper.Viper) (*gridseis.Config, error) {
	cfg := gridseis.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startLogger 日志同时写 stderr 和滚动文件
func startLogger(cfg *gridseis.Config) (*log.Logger, string, error) {
	pfname, err := makeFileExist(cfg.Logging.Dir, logName)
	if err != nil {
		return nil, "", err
	}
	rolling := &lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    cfg.Logging.MaxSizeMB,  // megabytes after which new file is created
		MaxBackups: cfg.Logging.MaxBackups, // number of backups
		MaxAge:     cfg.Logging.MaxAgeDays, // days
		Compress:   cfg.Logging.Compress,
	}
	return log.New(io.MultiWriter(os.Stderr, rolling), "", log.LstdFlags), pfname, nil
}
