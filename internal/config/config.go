package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Storage    StorageConfig    `yaml:"storage"`
	Vision     VisionConfig     `yaml:"vision"`
	Renditions RenditionsConfig `yaml:"renditions"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Geocoder   GeocoderConfig   `yaml:"geocoder"`
	OCR        OCRConfig        `yaml:"ocr"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"` // key prefix for all photo objects
	Provider  string `yaml:"provider"`
}

type VisionConfig struct {
	ModelsDir                string  `yaml:"models_dir"`
	LabelBankPath            string  `yaml:"label_bank_path"` // precomputed zero-shot label embeddings
	FaceDetectionThreshold   float64 `yaml:"face_detection_threshold"`
	AnimalDetectionThreshold float64 `yaml:"animal_detection_threshold"`
	WorkerCount              int     `yaml:"worker_count"`
	FaceCropSize             int     `yaml:"face_crop_size"`
	AnimalCropSize           int     `yaml:"animal_crop_size"`
	SceneThreshold           float64 `yaml:"scene_threshold"`
	SceneFloor               float64 `yaml:"scene_floor"`
	DocumentThreshold        float64 `yaml:"document_threshold"`
	DocumentFloor            float64 `yaml:"document_floor"`
}

type RenditionsConfig struct {
	Sizes   []int  `yaml:"sizes"`
	Quality int    `yaml:"quality"`
	Format  string `yaml:"format"`
}

type ClusteringConfig struct {
	FaceEps          float64 `yaml:"face_eps"`
	FaceMinSamples   int     `yaml:"face_min_samples"`
	AnimalEps        float64 `yaml:"animal_eps"`
	AnimalMinSamples int     `yaml:"animal_min_samples"`
}

type GeocoderConfig struct {
	BaseURL string `yaml:"base_url"`
	Enabled bool   `yaml:"enabled"`
}

type OCRConfig struct {
	Binary  string `yaml:"binary"`
	Enabled bool   `yaml:"enabled"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "photos"
	}
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = "s3"
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Vision.FaceDetectionThreshold == 0 {
		cfg.Vision.FaceDetectionThreshold = 0.5
	}
	if cfg.Vision.AnimalDetectionThreshold == 0 {
		cfg.Vision.AnimalDetectionThreshold = 0.7
	}
	if cfg.Vision.FaceCropSize == 0 {
		cfg.Vision.FaceCropSize = 160
	}
	if cfg.Vision.AnimalCropSize == 0 {
		cfg.Vision.AnimalCropSize = 224
	}
	if cfg.Vision.SceneThreshold == 0 {
		cfg.Vision.SceneThreshold = 0.4
	}
	if cfg.Vision.SceneFloor == 0 {
		cfg.Vision.SceneFloor = 0.25
	}
	if cfg.Vision.DocumentThreshold == 0 {
		cfg.Vision.DocumentThreshold = 0.3
	}
	if cfg.Vision.DocumentFloor == 0 {
		cfg.Vision.DocumentFloor = 0.15
	}
	if len(cfg.Renditions.Sizes) == 0 {
		cfg.Renditions.Sizes = []int{256, 512, 1024}
	}
	if cfg.Renditions.Quality == 0 {
		cfg.Renditions.Quality = 90
	}
	if cfg.Renditions.Format == "" {
		cfg.Renditions.Format = "jpeg"
	}
	if cfg.Clustering.FaceEps == 0 {
		cfg.Clustering.FaceEps = 0.5
	}
	if cfg.Clustering.FaceMinSamples == 0 {
		cfg.Clustering.FaceMinSamples = 3
	}
	if cfg.Clustering.AnimalEps == 0 {
		cfg.Clustering.AnimalEps = 0.52
	}
	if cfg.Clustering.AnimalMinSamples == 0 {
		cfg.Clustering.AnimalMinSamples = 2
	}
	if cfg.OCR.Binary == "" {
		cfg.OCR.Binary = "tesseract"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PB_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PB_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PB_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PB_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PB_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PB_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PB_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PB_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PB_STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("PB_STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("PB_STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("PB_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("PB_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("PB_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("PB_GEOCODER_URL"); v != "" {
		cfg.Geocoder.BaseURL = v
		cfg.Geocoder.Enabled = true
	}
	if v := os.Getenv("PB_OCR_BINARY"); v != "" {
		cfg.OCR.Binary = v
		cfg.OCR.Enabled = true
	}
}
