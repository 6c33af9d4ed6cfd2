package config

import (
	"VisionPredictor/pkg/annotator"
	"VisionPredictor/pkg/archive"
	"VisionPredictor/pkg/detector"
	"VisionPredictor/pkg/labels"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is everything read from the environment at startup.
type AppConfig struct {
	Env     string
	Port    string
	Profile labels.Profile

	Backend        detector.Backend
	ModelPath      string
	Confidence     float64
	IoU            float64
	PoolSize       int
	OnnxLibPath    string
	DetectorURL    string
	FontPath       string
	FontSize       float64
	PredictTimeout time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	QueueEnabled   bool
	QueueName      string
	ArchiveBackend string
	ArchiveDir     string
}

// LoadConfig reads the process environment. Malformed numbers are reported
// rather than silently replaced.
func LoadConfig() (AppConfig, error) {
	profileName := getEnv("PREDICTOR_PROFILE", labels.ProfileTeam)
	profile, err := labels.ProfileByName(profileName)
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("APP_PORT", profile.DefaultPort),
		Profile:        profile,
		Backend:        detector.Backend(strings.ToLower(getEnv("DETECTOR_BACKEND", string(detector.BackendONNX)))),
		ModelPath:      getEnv("MODEL_PATH", ""),
		OnnxLibPath:    os.Getenv("ONNXRUNTIME_LIB"),
		DetectorURL:    os.Getenv("DETECTOR_URL"),
		FontPath:       getEnv("ANNOTATION_FONT", annotator.DefaultFontPath),
		QueueName:      getEnv("QUEUE_NAME", profile.Name+"_queue"),
		ArchiveBackend: strings.ToLower(getEnv("ARCHIVE_BACKEND", archive.BackendLocal)),
		ArchiveDir:     getEnv("ARCHIVE_DIR", fmt.Sprintf("./storage/images/%s/processed", profile.Name)),
	}

	if cfg.Backend != detector.BackendONNX && cfg.Backend != detector.BackendRemote {
		return AppConfig{}, fmt.Errorf("unknown DETECTOR_BACKEND %q", cfg.Backend)
	}
	// the remote backend reports its URL as the model path unless one is given
	if cfg.ModelPath == "" && cfg.Backend == detector.BackendONNX {
		cfg.ModelPath = fmt.Sprintf("models/%s_model.onnx", profile.Name)
	}

	if cfg.Confidence, err = getFloat("DETECTOR_CONFIDENCE", detector.DefaultConfidence); err != nil {
		return AppConfig{}, err
	}
	if cfg.IoU, err = getFloat("DETECTOR_IOU", detector.DefaultIoU); err != nil {
		return AppConfig{}, err
	}
	if cfg.PoolSize, err = getInt("DETECTOR_POOL_SIZE", 1); err != nil {
		return AppConfig{}, err
	}
	if cfg.FontSize, err = getFloat("ANNOTATION_FONT_SIZE", annotator.DefaultFontSize); err != nil {
		return AppConfig{}, err
	}
	if cfg.PredictTimeout, err = getDuration("PREDICT_TIMEOUT", 30*time.Second); err != nil {
		return AppConfig{}, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 50); err != nil {
		return AppConfig{}, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 100); err != nil {
		return AppConfig{}, err
	}
	if cfg.QueueEnabled, err = getBool("QUEUE_ENABLED", false); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("45s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
