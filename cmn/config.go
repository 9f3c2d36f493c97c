package cmn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

const VERSION = "0.1.0"
const LOG_NAME = "kobonest.log"
const CONFIG_NAME = "config.yaml"
const ENV_PREFIX = "KOBONEST_"

const SEPOLIA_CHAIN_ID = 11155111

var DataFolder = "data"
var AppName = "kobonest"
var LogPath = LOG_NAME
var ConfPath = CONFIG_NAME

var ConfigChanged = false

type SConfig struct {
	Verbosity    string `yaml:"verbosity"`      // log verbosity
	RPCURL       string `yaml:"rpc_url"`        // http(s) or ws(s) endpoint
	RPCRateLimit int    `yaml:"rpc_rate_limit"` // calls/sec, 0 = auto-tune
	PollInterval string `yaml:"poll_interval"`  // block polling period for http endpoints
	WSEnabled    bool   `yaml:"ws_enabled"`     // enable WebSocket server for browser communication
	WSPort       int    `yaml:"ws_port"`

	TargetChainID     uint64 `yaml:"target_chain_id"`
	VaultAddress      string `yaml:"vault_address"`
	NairaTokenAddress string `yaml:"naira_token_address"`
	UsdcTokenAddress  string `yaml:"usdc_token_address"`
	AavePoolAddress   string `yaml:"aave_pool_address"`
	VaultDeployBlock  uint64 `yaml:"vault_deploy_block"` // no vault events before this block
	NairaPerUsdc      int64  `yaml:"naira_per_usdc"`     // display exchange rate, integer
	UseMockAave       bool   `yaml:"use_mock_aave"`
	MaxLogRange       uint64 `yaml:"max_log_range"`  // provider getLogs window
	TokenDecimals     int    `yaml:"token_decimals"` // display decimals when the token read fails

	Keystore       string `yaml:"keystore"`
	DerivationPath string `yaml:"derivation_path"`
}

var Config *SConfig = DefaultConfig()

func DefaultConfig() *SConfig {
	return &SConfig{
		Verbosity:      "debug",
		RPCURL:         "https://ethereum-sepolia-rpc.publicnode.com",
		PollInterval:   "4s",
		WSEnabled:      true,
		WSPort:         9324,
		TargetChainID:  SEPOLIA_CHAIN_ID,
		NairaPerUsdc:   1350,
		MaxLogRange:    9000,
		TokenDecimals:  6,
		Keystore:       "signer.dat",
		DerivationPath: "m/44'/60'/0'/0/0",
	}
}

func InitConfig() {
	var err error

	DataFolder, err = GetDataFolder()
	if err != nil {
		fmt.Printf("error getting data folder: %v", err)
		os.Exit(1)
	}

	LogPath = filepath.Join(DataFolder, LOG_NAME)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logFile, err := os.OpenFile(LogPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666) // truncate log file
	if err != nil {
		log.Fatal().Msgf("error opening log file: %v", err)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile})

	ConfPath = filepath.Join(DataFolder, CONFIG_NAME)
	err = RestoreConfig(ConfPath)
	if err != nil {
		log.Error().Msgf("error restoring config: %v", err)
	}

	Config.ApplyEnv(os.LookupEnv)

	if err := Config.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid config, falling back to defaults")
		Config = DefaultConfig()
	}

	zerolog.SetGlobalLevel(ParseVerbosity(Config.Verbosity))
	log.Info().Msgf("Log level: %s", Config.Verbosity)

	if !Config.Contracts().Ready() {
		log.Warn().Msg(NOT_READY_WARNING)
	}

	log.Trace().Msg("Started")
}

func ParseVerbosity(v string) zerolog.Level {
	switch v {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.DebugLevel
	}
}

func SaveConfig() error {
	if !ConfigChanged {
		return nil
	}

	data, err := yaml.Marshal(Config)
	if err != nil {
		return err
	}

	err = os.WriteFile(ConfPath, data, 0666)
	if err != nil {
		return err
	}

	ConfigChanged = false
	return nil
}

func RestoreConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// it is ok. Let's use default config
			log.Warn().Msgf("no config file found: %v", err)
			return nil
		}
		return err
	}

	return yaml.Unmarshal(data, Config)
}

// ApplyEnv overrides fields from KOBONEST_* variables. Unparsable values are
// logged and ignored.
func (c *SConfig) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(ENV_PREFIX + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	u64 := func(name string, dst *uint64) {
		if v, ok := lookup(ENV_PREFIX + name); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				log.Warn().Err(err).Str("var", ENV_PREFIX+name).Msg("ignoring env override")
				return
			}
			*dst = n
		}
	}
	i64 := func(name string, dst *int64) {
		if v, ok := lookup(ENV_PREFIX + name); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				log.Warn().Err(err).Str("var", ENV_PREFIX+name).Msg("ignoring env override")
				return
			}
			*dst = n
		}
	}
	integer := func(name string, dst *int) {
		var n int64 = int64(*dst)
		i64(name, &n)
		*dst = int(n)
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(ENV_PREFIX + name); ok {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}

	str("VERBOSITY", &c.Verbosity)
	str("RPC_URL", &c.RPCURL)
	integer("RPC_RATE_LIMIT", &c.RPCRateLimit)
	str("POLL_INTERVAL", &c.PollInterval)
	boolean("WS_ENABLED", &c.WSEnabled)
	integer("WS_PORT", &c.WSPort)
	u64("TARGET_CHAIN_ID", &c.TargetChainID)
	str("TREASURY_VAULT_ADDRESS", &c.VaultAddress)
	str("NAIRA_TOKEN_ADDRESS", &c.NairaTokenAddress)
	str("USDC_TOKEN_ADDRESS", &c.UsdcTokenAddress)
	str("AAVE_POOL_ADDRESS", &c.AavePoolAddress)
	u64("VAULT_DEPLOY_BLOCK", &c.VaultDeployBlock)
	i64("NAIRA_PER_USDC", &c.NairaPerUsdc)
	boolean("USE_MOCK_AAVE", &c.UseMockAave)
	u64("MAX_LOG_RANGE", &c.MaxLogRange)
	integer("TOKEN_DECIMALS", &c.TokenDecimals)
	str("KEYSTORE", &c.Keystore)
	str("DERIVATION_PATH", &c.DerivationPath)
}

func (c *SConfig) Validate() error {
	if c.MaxLogRange == 0 {
		return errors.New("max_log_range must be positive")
	}
	if c.NairaPerUsdc <= 0 {
		return errors.New("naira_per_usdc must be positive")
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 36 {
		return fmt.Errorf("token_decimals out of range: %d", c.TokenDecimals)
	}
	if _, err := time.ParseDuration(c.PollInterval); err != nil {
		return fmt.Errorf("poll_interval: %w", err)
	}
	return nil
}

func (c *SConfig) PollEvery() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 4 * time.Second
	}
	return d
}

func GetDataFolder() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			return "", fmt.Errorf("LOCALAPPDATA environment variable is not set")
		}
		dataDir = filepath.Join(localAppData, AppName)
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting home directory: %v", err)
		}
		dataDir = filepath.Join(homeDir, "Library", "Application Support", AppName)
	case "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error getting home directory: %v", err)
		}
		dataDir = filepath.Join(homeDir, "."+AppName)
	default:
		return "", fmt.Errorf("unsupported operating system")
	}

	err := os.MkdirAll(dataDir, os.ModePerm)
	if err != nil {
		return "", fmt.Errorf("error creating data directory: %v", err)
	}

	return dataDir, nil
}
