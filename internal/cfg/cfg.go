package cfg

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"callquality/internal/common"
)

type Settings struct {
	ModelPath       string
	ModelsDir       string
	DataPath        string
	ListenPort      int
	MetricsEnabled  bool
	LogLevel        string
	LogFile         string
	LogConsole      bool
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CacheSize       int
	CacheTTL        time.Duration
	RecentLimit     int
	Training        TrainingSettings
}

// TrainingSettings drive the offline training pipeline.
type TrainingSettings struct {
	DataDir      string
	FilePattern  string
	TopStates    int
	TestRatio    float64
	Seed         int64
	Folds        int
	Trees        int
	MaxDepth     int
	BoostRounds  int
	BoostDepth   int
	LearningRate float64
	OutputDir    string
}

type ConfigFile struct {
	Server struct {
		Port            int      `yaml:"port"`
		AllowedOrigins  []string `yaml:"allowedOrigins"`
		RequestTimeout  string   `yaml:"requestTimeout"`
		ShutdownTimeout string   `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Model struct {
		Path      string `yaml:"path"`
		ModelsDir string `yaml:"modelsDir"`
		CacheSize int    `yaml:"cacheSize"`
		CacheTTL  string `yaml:"cacheTTL"`
	} `yaml:"model"`

	Storage struct {
		DataPath    string `yaml:"dataPath"`
		RecentLimit int    `yaml:"recentLimit"`
	} `yaml:"storage"`

	Logging struct {
		Level   string `yaml:"level"`
		File    string `yaml:"file"`
		Console *bool  `yaml:"console"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`

	Training struct {
		DataDir      string  `yaml:"dataDir"`
		FilePattern  string  `yaml:"filePattern"`
		TopStates    int     `yaml:"topStates"`
		TestRatio    float64 `yaml:"testRatio"`
		Seed         int64   `yaml:"seed"`
		Folds        int     `yaml:"folds"`
		Trees        int     `yaml:"trees"`
		MaxDepth     int     `yaml:"maxDepth"`
		BoostRounds  int     `yaml:"boostRounds"`
		BoostDepth   int     `yaml:"boostDepth"`
		LearningRate float64 `yaml:"learningRate"`
		OutputDir    string  `yaml:"outputDir"`
	} `yaml:"training"`
}

// Defaults returns the settings used when neither a config file nor the
// environment sets a value.
func Defaults() Settings {
	return Settings{
		ModelPath:       common.DefaultModelPath,
		ModelsDir:       common.DefaultModelsDir,
		ListenPort:      common.DefaultListenPort,
		MetricsEnabled:  true,
		LogLevel:        "info",
		LogConsole:      true,
		AllowedOrigins:  []string{"*"},
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CacheSize:       1024,
		CacheTTL:        10 * time.Minute,
		RecentLimit:     50,
		Training: TrainingSettings{
			DataDir:      common.DefaultDataDir,
			FilePattern:  common.DefaultFilePattern,
			TopStates:    10,
			TestRatio:    0.2,
			Seed:         common.DefaultSeed,
			Folds:        5,
			Trees:        100,
			MaxDepth:     12,
			BoostRounds:  100,
			BoostDepth:   3,
			LearningRate: 0.1,
			OutputDir:    common.DefaultReportDir,
		},
	}
}

func Load() (Settings, error) {
	if err := loadDotEnv(getEnvOrDefault(common.EnvEnvFile, ".env")); err != nil {
		return Settings{}, err
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

// loadDotEnv loads variables from path without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	base := Defaults()
	base.ListenPort = orInt(config.Server.Port, base.ListenPort)
	if len(config.Server.AllowedOrigins) > 0 {
		base.AllowedOrigins = config.Server.AllowedOrigins
	}
	base.RequestTimeout = orDuration(config.Server.RequestTimeout, base.RequestTimeout)
	base.ShutdownTimeout = orDuration(config.Server.ShutdownTimeout, base.ShutdownTimeout)
	base.ModelPath = orString(config.Model.Path, base.ModelPath)
	base.ModelsDir = orString(config.Model.ModelsDir, base.ModelsDir)
	base.CacheSize = orInt(config.Model.CacheSize, base.CacheSize)
	base.CacheTTL = orDuration(config.Model.CacheTTL, base.CacheTTL)
	base.DataPath = orString(config.Storage.DataPath, base.DataPath)
	base.RecentLimit = orInt(config.Storage.RecentLimit, base.RecentLimit)
	base.LogLevel = orString(config.Logging.Level, base.LogLevel)
	base.LogFile = orString(config.Logging.File, base.LogFile)
	if config.Logging.Console != nil {
		base.LogConsole = *config.Logging.Console
	}
	if config.Metrics.Enabled != nil {
		base.MetricsEnabled = *config.Metrics.Enabled
	}

	tr := &base.Training
	tr.DataDir = orString(config.Training.DataDir, tr.DataDir)
	tr.FilePattern = orString(config.Training.FilePattern, tr.FilePattern)
	tr.TopStates = orInt(config.Training.TopStates, tr.TopStates)
	tr.TestRatio = orFloat(config.Training.TestRatio, tr.TestRatio)
	if config.Training.Seed != 0 {
		tr.Seed = config.Training.Seed
	}
	tr.Folds = orInt(config.Training.Folds, tr.Folds)
	tr.Trees = orInt(config.Training.Trees, tr.Trees)
	tr.MaxDepth = orInt(config.Training.MaxDepth, tr.MaxDepth)
	tr.BoostRounds = orInt(config.Training.BoostRounds, tr.BoostRounds)
	tr.BoostDepth = orInt(config.Training.BoostDepth, tr.BoostDepth)
	tr.LearningRate = orFloat(config.Training.LearningRate, tr.LearningRate)
	tr.OutputDir = orString(config.Training.OutputDir, tr.OutputDir)

	// Override with environment variables if they exist
	settings := applyEnv(base)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := applyEnv(Defaults())

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// applyEnv overlays environment variables on base.
func applyEnv(base Settings) Settings {
	s := base
	s.ModelPath = getEnvOrDefault(common.EnvModelPath, base.ModelPath)
	s.ModelsDir = getEnvOrDefault(common.EnvModelsDir, base.ModelsDir)
	s.DataPath = getEnvOrDefault(common.EnvDataPath, base.DataPath)
	s.ListenPort = getIntOrDefault(common.EnvPort, getIntOrDefault(common.EnvListenPort, base.ListenPort))
	s.MetricsEnabled = getBoolOrDefault(common.EnvMetricsEnabled, base.MetricsEnabled)
	s.LogLevel = getEnvOrDefault(common.EnvLogLevel, base.LogLevel)
	s.LogFile = getEnvOrDefault(common.EnvLogFile, base.LogFile)
	s.LogConsole = getBoolOrDefault(common.EnvLogConsole, base.LogConsole)
	s.AllowedOrigins = splitOrDefault(os.Getenv(common.EnvAllowedOrigins), base.AllowedOrigins)
	s.RequestTimeout = getDurationOrDefault(common.EnvRequestTimeout, base.RequestTimeout)
	s.ShutdownTimeout = getDurationOrDefault(common.EnvShutdownTimeout, base.ShutdownTimeout)
	s.CacheSize = getIntOrDefault(common.EnvCacheSize, base.CacheSize)
	s.CacheTTL = getDurationOrDefault(common.EnvCacheTTL, base.CacheTTL)
	s.RecentLimit = getIntOrDefault(common.EnvRecentLimit, base.RecentLimit)

	t := base.Training
	s.Training = TrainingSettings{
		DataDir:      getEnvOrDefault(common.EnvTrainDataDir, t.DataDir),
		FilePattern:  getEnvOrDefault(common.EnvTrainFilePattern, t.FilePattern),
		TopStates:    getIntOrDefault(common.EnvTrainTopStates, t.TopStates),
		TestRatio:    getFloatOrDefault(common.EnvTrainTestRatio, t.TestRatio),
		Seed:         int64(getIntOrDefault(common.EnvTrainSeed, int(t.Seed))),
		Folds:        getIntOrDefault(common.EnvTrainFolds, t.Folds),
		Trees:        getIntOrDefault(common.EnvTrainTrees, t.Trees),
		MaxDepth:     getIntOrDefault(common.EnvTrainMaxDepth, t.MaxDepth),
		BoostRounds:  getIntOrDefault(common.EnvTrainBoostRounds, t.BoostRounds),
		BoostDepth:   getIntOrDefault(common.EnvTrainBoostDepth, t.BoostDepth),
		LearningRate: getFloatOrDefault(common.EnvTrainLearningRate, t.LearningRate),
		OutputDir:    getEnvOrDefault(common.EnvReportDir, t.OutputDir),
	}
	return s
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.ModelsDir == "" {
		return fmt.Errorf("models directory cannot be empty")
	}

	if settings.ListenPort < 1024 || settings.ListenPort > 65535 {
		return fmt.Errorf("listen port must be between 1024 and 65535, got %d", settings.ListenPort)
	}
	if len(settings.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	// Validate time durations
	if settings.RequestTimeout < time.Second || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 1s and 1m, got %v", settings.RequestTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 1m, got %v", settings.ShutdownTimeout)
	}

	if settings.CacheSize < 0 || settings.CacheSize > 1_000_000 {
		return fmt.Errorf("cache size must be between 0 and 1000000, got %d", settings.CacheSize)
	}
	if settings.CacheSize > 0 && (settings.CacheTTL < time.Second || settings.CacheTTL > 24*time.Hour) {
		return fmt.Errorf("cache TTL must be between 1s and 24h, got %v", settings.CacheTTL)
	}
	if settings.RecentLimit < 1 || settings.RecentLimit > 1000 {
		return fmt.Errorf("recent limit must be between 1 and 1000, got %d", settings.RecentLimit)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	return validateTraining(&settings.Training)
}

func validateTraining(t *TrainingSettings) error {
	if t.DataDir == "" {
		return fmt.Errorf("training data directory cannot be empty")
	}
	if t.FilePattern == "" {
		return fmt.Errorf("training file pattern cannot be empty")
	}
	if t.TopStates < 1 || t.TopStates > 50 {
		return fmt.Errorf("top states must be between 1 and 50, got %d", t.TopStates)
	}
	if t.TestRatio <= 0 || t.TestRatio >= 1 {
		return fmt.Errorf("test ratio must be between 0 and 1 (exclusive), got %f", t.TestRatio)
	}
	if t.Folds < 2 || t.Folds > 20 {
		return fmt.Errorf("folds must be between 2 and 20, got %d", t.Folds)
	}
	if t.Trees < 1 || t.Trees > 1000 {
		return fmt.Errorf("trees must be between 1 and 1000, got %d", t.Trees)
	}
	if t.MaxDepth < 0 || t.MaxDepth > 64 {
		return fmt.Errorf("max depth must be between 0 (unlimited) and 64, got %d", t.MaxDepth)
	}
	if t.BoostRounds < 1 || t.BoostRounds > 1000 {
		return fmt.Errorf("boosting rounds must be between 1 and 1000, got %d", t.BoostRounds)
	}
	if t.BoostDepth < 1 || t.BoostDepth > 10 {
		return fmt.Errorf("boosting depth must be between 1 and 10, got %d", t.BoostDepth)
	}
	if t.LearningRate <= 0 || t.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %f", t.LearningRate)
	}
	if t.OutputDir == "" {
		return fmt.Errorf("report output directory cannot be empty")
	}
	return nil
}
