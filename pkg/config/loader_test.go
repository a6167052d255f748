package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingsync/pkg/config"
)

type testConfigDefault struct {
	TestString string        `env:"TEST_STRING_DEFAULT" envDefault:"default_value"`
	TestInt    int           `env:"TEST_INT_DEFAULT" envDefault:"42"`
	TestTTL    time.Duration `env:"TEST_TTL_DEFAULT" envDefault:"72h"`
}

type testConfigSuccess struct {
	TestString string `env:"TEST_STRING_SUCCESS" envDefault:"default_value"`
	TestInt    int    `env:"TEST_INT_SUCCESS" envDefault:"42"`
	TestBool   bool   `env:"TEST_BOOL_SUCCESS" envDefault:"true"`
}

type testConfigSingleton struct {
	TestString string `env:"TEST_STRING_SINGLETON" envDefault:"default_value"`
}

type requiredConfig struct {
	Required string `env:"REQUIRED_VALUE,required"`
}

type customEnvConfig struct {
	TestString    string   `env:"TEST_CUSTOM_STRING"`
	TestInt       int      `env:"TEST_CUSTOM_INT"`
	TestArray     []string `env:"TEST_CUSTOM_ARRAY" envSeparator:","`
	TestWithQuote string   `env:"TEST_CUSTOM_WITH_QUOTES"`
}

type prefixedConfig struct {
	TrialDays int    `env:"TRIAL_DAYS" envDefault:"14"`
	PriceID   string `env:"PRICE_ID,required"`
}

func TestLoad_Success(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_STRING_SUCCESS", "test_value")
	t.Setenv("TEST_INT_SUCCESS", "100")
	t.Setenv("TEST_BOOL_SUCCESS", "false")

	var cfg testConfigSuccess
	err := config.Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, "test_value", cfg.TestString)
	assert.Equal(t, 100, cfg.TestInt)
	assert.False(t, cfg.TestBool)
}

func TestLoad_DefaultValues(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("TEST_STRING_DEFAULT")
	os.Unsetenv("TEST_INT_DEFAULT")
	os.Unsetenv("TEST_TTL_DEFAULT")

	var cfg testConfigDefault
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "default_value", cfg.TestString)
	assert.Equal(t, 42, cfg.TestInt)
	assert.Equal(t, 72*time.Hour, cfg.TestTTL)
}

func TestLoad_MissingRequired(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("REQUIRED_VALUE")

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	// A failed load is not cached.
	t.Setenv("REQUIRED_VALUE", "present")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "present", cfg.Required)
}

func TestLoad_Singleton(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_STRING_SINGLETON", "first")

	var first testConfigSingleton
	require.NoError(t, config.Load(&first))

	t.Setenv("TEST_STRING_SINGLETON", "second")
	var second testConfigSingleton
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.TestString)

	config.ResetCache()
	var third testConfigSingleton
	require.NoError(t, config.Load(&third))
	assert.Equal(t, "second", third.TestString)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *testConfigSingleton
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestMustLoad_Panics(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("REQUIRED_VALUE")
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}

func TestLoadEnv_CustomPath(t *testing.T) {
	for _, k := range []string{"TEST_CUSTOM_STRING", "TEST_CUSTOM_INT", "TEST_CUSTOM_ARRAY", "TEST_CUSTOM_WITH_QUOTES"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	require.NoError(t, config.LoadEnv("testdata/.env.custom"))

	cfg, err := config.Parse[customEnvConfig]()
	require.NoError(t, err)
	assert.Equal(t, "custom_value", cfg.TestString)
	assert.Equal(t, 1234, cfg.TestInt)
	assert.Equal(t, []string{"item1", "item2", "item3"}, cfg.TestArray)
	assert.Equal(t, "quoted value", cfg.TestWithQuote)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	err := config.LoadEnv("testdata/.env.missing")
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("prefix and explicit environment", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.Parse[prefixedConfig](
			config.WithPrefix("BILLING_"),
			config.WithEnvironment(map[string]string{
				"BILLING_PRICE_ID":   "price_123",
				"BILLING_TRIAL_DAYS": "7",
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.TrialDays)
		assert.Equal(t, "price_123", cfg.PriceID)
	})

	t.Run("missing required", func(t *testing.T) {
		t.Parallel()
		_, err := config.Parse[prefixedConfig](config.WithEnvironment(map[string]string{}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
