package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Library struct {
		Provider string `mapstructure:"provider"` // "local" or "s3"
		AudioDir string `mapstructure:"audio_dir"`
		CacheDir string `mapstructure:"cache_dir"` // where S3 tracks land before playback
	} `mapstructure:"library"`
	S3 struct {
		KeyID    string `mapstructure:"key_id"`
		AppKey   string `mapstructure:"app_key"`
		Endpoint string `mapstructure:"endpoint"`
		Region   string `mapstructure:"region"`
		Bucket   string `mapstructure:"bucket"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"s3"`
	Video struct {
		File          string `mapstructure:"file"`
		FallbackColor string `mapstructure:"fallback_color"`
		FallbackFPS   int    `mapstructure:"fallback_fps"`
	} `mapstructure:"video"`
	Overlay struct {
		Logo     string `mapstructure:"logo"`
		Font     string `mapstructure:"font"`
		TextFile string `mapstructure:"text_file"`
		FontSize int    `mapstructure:"font_size"`
	} `mapstructure:"overlay"`
	Stream struct {
		URL              string `mapstructure:"url"`      // direct override, wins over url_file
		URLFile          string `mapstructure:"url_file"` // re-read on every restart cycle
		CheckHost        string `mapstructure:"check_host"`
		CheckPort        int    `mapstructure:"check_port"`
		SkipNetworkCheck bool   `mapstructure:"skip_network_check"`
	} `mapstructure:"stream"`
	Encoder struct {
		FFmpegPath   string `mapstructure:"ffmpeg_path"`
		FFprobePath  string `mapstructure:"ffprobe_path"`
		LogLevel     string `mapstructure:"log_level"`
		Preset       string `mapstructure:"preset"`
		VideoBitrate string `mapstructure:"video_bitrate"`
		AudioBitrate string `mapstructure:"audio_bitrate"`
		Width        int    `mapstructure:"width"`
		Height       int    `mapstructure:"height"`
		KeyInt       int    `mapstructure:"keyint"`
	} `mapstructure:"encoder"`
	Supervisor struct {
		RetryLimit             int `mapstructure:"retry_limit"`
		RestartDelaySeconds    int `mapstructure:"restart_delay_seconds"`
		ProbeTimeoutSeconds    int `mapstructure:"probe_timeout_seconds"`
		TrackExitBufferSeconds int `mapstructure:"track_exit_buffer_seconds"`
	} `mapstructure:"supervisor"`
	Server struct {
		StatusAddr string `mapstructure:"status_addr"`
		LogFile    string `mapstructure:"log_file"`
	} `mapstructure:"server"`
	History struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"history"`
}

func Load() *Config {
	viper.SetEnvPrefix("LOFI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("library.provider")
	viper.BindEnv("library.audio_dir")
	viper.BindEnv("library.cache_dir")
	viper.BindEnv("s3.key_id")
	viper.BindEnv("s3.app_key")
	viper.BindEnv("s3.endpoint")
	viper.BindEnv("s3.region")
	viper.BindEnv("s3.bucket")
	viper.BindEnv("s3.prefix")
	viper.BindEnv("video.file")
	viper.BindEnv("video.fallback_color")
	viper.BindEnv("video.fallback_fps")
	viper.BindEnv("overlay.logo")
	viper.BindEnv("overlay.font")
	viper.BindEnv("overlay.text_file")
	viper.BindEnv("overlay.font_size")
	viper.BindEnv("stream.url")
	viper.BindEnv("stream.url_file")
	viper.BindEnv("stream.check_host")
	viper.BindEnv("stream.check_port")
	viper.BindEnv("stream.skip_network_check")
	viper.BindEnv("encoder.ffmpeg_path")
	viper.BindEnv("encoder.ffprobe_path")
	viper.BindEnv("encoder.log_level")
	viper.BindEnv("encoder.preset")
	viper.BindEnv("encoder.video_bitrate")
	viper.BindEnv("encoder.audio_bitrate")
	viper.BindEnv("encoder.width")
	viper.BindEnv("encoder.height")
	viper.BindEnv("encoder.keyint")
	viper.BindEnv("supervisor.retry_limit")
	viper.BindEnv("supervisor.restart_delay_seconds")
	viper.BindEnv("supervisor.probe_timeout_seconds")
	viper.BindEnv("supervisor.track_exit_buffer_seconds")
	viper.BindEnv("server.status_addr")
	viper.BindEnv("server.log_file")
	viper.BindEnv("history.path")

	// Library defaults
	viper.SetDefault("library.provider", "local")
	viper.SetDefault("library.audio_dir", "./Sounds")
	viper.SetDefault("library.cache_dir", "/tmp/lofi_track_cache")

	// Video / overlay defaults
	viper.SetDefault("video.file", "./Videos/Lofi3.mp4")
	viper.SetDefault("video.fallback_color", "black")
	viper.SetDefault("video.fallback_fps", 30)
	viper.SetDefault("overlay.logo", "./Logo/LoFiLogo700.png")
	viper.SetDefault("overlay.font", "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf")
	viper.SetDefault("overlay.text_file", "/tmp/nowplaying.txt")
	viper.SetDefault("overlay.font_size", 24)

	// Stream defaults (YouTube ingest)
	viper.SetDefault("stream.url_file", "./stream_url.txt")
	viper.SetDefault("stream.check_host", "a.rtmp.youtube.com")
	viper.SetDefault("stream.check_port", 1935)
	viper.SetDefault("stream.skip_network_check", false)

	// Encoder defaults (YouTube-safe GOP, Pi-friendly preset)
	viper.SetDefault("encoder.ffmpeg_path", "ffmpeg")
	viper.SetDefault("encoder.ffprobe_path", "ffprobe")
	viper.SetDefault("encoder.log_level", "error")
	viper.SetDefault("encoder.preset", "veryfast")
	viper.SetDefault("encoder.video_bitrate", "2500k")
	viper.SetDefault("encoder.audio_bitrate", "160k")
	viper.SetDefault("encoder.width", 1280)
	viper.SetDefault("encoder.height", 720)
	viper.SetDefault("encoder.keyint", 60)

	// Supervisor defaults
	viper.SetDefault("supervisor.retry_limit", 3)
	viper.SetDefault("supervisor.restart_delay_seconds", 5)
	viper.SetDefault("supervisor.probe_timeout_seconds", 10)
	viper.SetDefault("supervisor.track_exit_buffer_seconds", 5)

	// Server defaults
	viper.SetDefault("server.status_addr", ":8080")
	viper.SetDefault("server.log_file", "./lofi-streamer.log")

	// History defaults
	viper.SetDefault("history.path", "./lofi-history.db")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	return &cfg
}

// ResolveStreamURL returns the RTMP destination. A direct URL (flag or env)
// wins; otherwise the url_file is read fresh so that stream-key edits made by
// the control plane are picked up on the next restart cycle.
func (c *Config) ResolveStreamURL() (string, error) {
	if c.Stream.URL != "" {
		return strings.TrimSpace(c.Stream.URL), nil
	}
	data, err := os.ReadFile(c.Stream.URLFile)
	if err != nil {
		return "", fmt.Errorf("read stream url file %s: %w", c.Stream.URLFile, err)
	}
	url := strings.TrimSpace(string(data))
	if url == "" {
		return "", fmt.Errorf("stream url file %s is empty", c.Stream.URLFile)
	}
	return url, nil
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Supervisor.ProbeTimeoutSeconds) * time.Second
}

func (c *Config) RestartDelay() time.Duration {
	return time.Duration(c.Supervisor.RestartDelaySeconds) * time.Second
}

func (c *Config) TrackExitBuffer() time.Duration {
	return time.Duration(c.Supervisor.TrackExitBufferSeconds) * time.Second
}
