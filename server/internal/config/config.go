package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	VAD      VADConfig      `yaml:"vad"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Triage   TriageConfig   `yaml:"triage"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Storage  StorageConfig  `yaml:"storage"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type AudioConfig struct {
	// SampleRate 进线音频采样率（Hz），与协作方约定一致。
	SampleRate int `yaml:"sample_rate"`
}

// VADConfig 话段切分参数。
// 注意：这些阈值来自原始系统文档的标定值，未经真实数据验证，
// 部署前应按实际线路重新标定。
type VADConfig struct {
	// EnergyThreshold RMS 能量阈值，超过视为有语音。
	EnergyThreshold float64 `yaml:"energy_threshold"`
	// SilenceDuration 静音持续多久触发出段（秒）。
	SilenceDuration float64 `yaml:"silence_duration"`
	// MaxBufferDuration 缓冲上限（秒），兜底强制出段。
	MaxBufferDuration float64 `yaml:"max_buffer_duration"`
	// MinUtteranceDuration 静音触发时的最小出段时长（秒），避免纯静音段。
	MinUtteranceDuration float64 `yaml:"min_utterance_duration"`
	// MinFinalFlushDuration 会话结束兜底处理残余缓冲的最小时长（秒）。
	MinFinalFlushDuration float64 `yaml:"min_final_flush_duration"`
}

// AnalysisConfig 三个外部协作方的地址与超时。
type AnalysisConfig struct {
	TranscriptionURL string `yaml:"transcription_url"`
	AcousticURL      string `yaml:"acoustic_url"`
	EntityURL        string `yaml:"entity_url"`
	// Timeout 单路分析的超时，超时按隔离失败处理。
	Timeout time.Duration `yaml:"timeout"`
}

// TriageConfig 决策矩阵阈值。与 VAD 一样属于未验证的标定常量。
type TriageConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	ContentThreshold    float64 `yaml:"content_threshold"`
	ConcernThreshold    float64 `yaml:"concern_threshold"`
}

type GatewayConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type StorageConfig struct {
	// SQLitePath 为空时使用内存存储（调试用，重启即丢）。
	SQLitePath string `yaml:"sqlite_path"`
}

// Load 从文件加载配置，再用环境变量覆盖服务地址类部署项。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// 从环境变量覆盖协作方地址与存储路径，便于部署时切换实例。
	if v := os.Getenv("TRANSCRIPTION_URL"); v != "" {
		cfg.Analysis.TranscriptionURL = v
	}
	if v := os.Getenv("ACOUSTIC_URL"); v != "" {
		cfg.Analysis.AcousticURL = v
	}
	if v := os.Getenv("ENTITY_URL"); v != "" {
		cfg.Analysis.EntityURL = v
	}
	if v := os.Getenv("CALLS_DB_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default 返回带标定默认值的配置。Load 在其上做增量覆盖。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
		},
		VAD: VADConfig{
			EnergyThreshold:       0.01,
			SilenceDuration:       1.5,
			MaxBufferDuration:     30.0,
			MinUtteranceDuration:  0.5,
			MinFinalFlushDuration: 2.0,
		},
		Analysis: AnalysisConfig{
			TranscriptionURL: "http://localhost:9001/transcribe",
			AcousticURL:      "http://localhost:9002/analyze",
			EntityURL:        "http://localhost:9003/extract",
			Timeout:          15 * time.Second,
		},
		Triage: TriageConfig{
			ConfidenceThreshold: 0.7,
			ContentThreshold:    0.5,
			ConcernThreshold:    0.5,
		},
		Gateway: GatewayConfig{
			PingInterval: 30 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample_rate must be positive")
	}
	if c.VAD.EnergyThreshold <= 0 {
		return fmt.Errorf("vad energy_threshold must be positive")
	}
	if c.VAD.SilenceDuration <= 0 || c.VAD.MaxBufferDuration <= c.VAD.SilenceDuration {
		return fmt.Errorf("vad durations inconsistent: silence=%.1f max=%.1f",
			c.VAD.SilenceDuration, c.VAD.MaxBufferDuration)
	}
	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("analysis timeout must be positive")
	}
	// 空地址不应该拖到运行期才以逐话段失败的形式暴露。
	for name, url := range map[string]string{
		"transcription_url": c.Analysis.TranscriptionURL,
		"acoustic_url":      c.Analysis.AcousticURL,
		"entity_url":        c.Analysis.EntityURL,
	} {
		if url == "" {
			return fmt.Errorf("analysis %s must be set", name)
		}
	}
	for name, v := range map[string]float64{
		"confidence_threshold": c.Triage.ConfidenceThreshold,
		"content_threshold":    c.Triage.ContentThreshold,
		"concern_threshold":    c.Triage.ConcernThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("triage %s out of range [0,1]: %v", name, v)
		}
	}
	return nil
}
