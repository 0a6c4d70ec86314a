package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvEnvFile         = "ENV_FILE"
	EnvModelPath       = "MODEL_PATH"
	EnvModelsDir       = "MODELS_DIR"
	EnvDataPath        = "DATA_PATH"
	EnvPort            = "PORT"
	EnvListenPort      = "LISTEN_PORT"
	EnvMetricsEnabled  = "METRICS_ENABLED"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFile         = "LOG_FILE"
	EnvLogConsole      = "LOG_CONSOLE"
	EnvAllowedOrigins  = "ALLOWED_ORIGINS"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvCacheSize       = "CACHE_SIZE"
	EnvCacheTTL        = "CACHE_TTL"
	EnvRecentLimit     = "RECENT_LIMIT"
)

// Training environment variable keys
const (
	EnvTrainDataDir      = "TRAIN_DATA_DIR"
	EnvTrainFilePattern  = "TRAIN_FILE_PATTERN"
	EnvTrainTopStates    = "TRAIN_TOP_STATES"
	EnvTrainTestRatio    = "TRAIN_TEST_RATIO"
	EnvTrainSeed         = "TRAIN_SEED"
	EnvTrainFolds        = "TRAIN_FOLDS"
	EnvTrainTrees        = "TRAIN_TREES"
	EnvTrainMaxDepth     = "TRAIN_MAX_DEPTH"
	EnvTrainBoostRounds  = "TRAIN_BOOST_ROUNDS"
	EnvTrainBoostDepth   = "TRAIN_BOOST_DEPTH"
	EnvTrainLearningRate = "TRAIN_LEARNING_RATE"
	EnvReportDir         = "REPORT_DIR"
)

// Defaults shared by the API and the training pipeline
const (
	DefaultModelPath   = "models/call_quality_model.json"
	DefaultModelsDir   = "models"
	DefaultDataDir     = "data"
	DefaultFilePattern = "*_MyCall_*.csv"
	DefaultReportDir   = "reports"
	DefaultListenPort  = 8000
	DefaultSeed        = 42
)
