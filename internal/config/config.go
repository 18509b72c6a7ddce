package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Input tables
	ClickData       string `mapstructure:"click_data" yaml:"click_data" validate:"required"`
	SalesData       string `mapstructure:"sales_data" yaml:"sales_data" validate:"required"`
	DemographicData string `mapstructure:"demographic_data" yaml:"demographic_data" validate:"required"`
	SegmentData     string `mapstructure:"segment_data" yaml:"segment_data" validate:"required"`
	IDColumn        string `mapstructure:"id_column" yaml:"id_column" validate:"required"`
	ProductColumn   string `mapstructure:"product_column" yaml:"product_column"`
	Delimiter       string `mapstructure:"delimiter" yaml:"delimiter" validate:"omitempty,delimiter"`
	SheetName       string `mapstructure:"sheet_name" yaml:"sheet_name"`

	// Features and model
	Features     []string `mapstructure:"features" yaml:"features" validate:"min=1,dive,required"`
	TestSize     float64  `mapstructure:"test_size" yaml:"test_size" validate:"gt=0,lt=1"`
	Seed         int64    `mapstructure:"seed" yaml:"seed"`
	Trees        int      `mapstructure:"trees" yaml:"trees" validate:"min=1"`
	MaxFeatures  int      `mapstructure:"max_features" yaml:"max_features" validate:"min=0"`
	CVFolds      int      `mapstructure:"cv_folds" yaml:"cv_folds" validate:"min=2"`
	CurvePoints  int      `mapstructure:"curve_points" yaml:"curve_points" validate:"min=2"`
	SkipCurve    bool     `mapstructure:"skip_learning_curve" yaml:"skip_learning_curve"`
	HistBins     int      `mapstructure:"hist_bins" yaml:"hist_bins" validate:"min=1"`
	PlotWidthIn  float64  `mapstructure:"plot_width_in" yaml:"plot_width_in" validate:"gt=0"`
	PlotHeightIn float64  `mapstructure:"plot_height_in" yaml:"plot_height_in" validate:"gt=0"`

	// Ranking
	PrimaryProduct    string   `mapstructure:"primary_product" yaml:"primary_product"`
	Products          []string `mapstructure:"products" yaml:"products"`
	TopN              int      `mapstructure:"top_n" yaml:"top_n" validate:"min=1"`
	TopNPerProduct    int      `mapstructure:"top_n_per_product" yaml:"top_n_per_product" validate:"min=1"`
	DecisionThreshold float64  `mapstructure:"decision_threshold" yaml:"decision_threshold" validate:"gt=0,lt=1"`

	// Output
	RunsDir string `mapstructure:"runs_dir" yaml:"runs_dir"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"omitempty,oneof=console json"`
}

var validate = newValidator()

// delimiters accepted by the table loader.
var delimiters = map[string]bool{",": true, ";": true, "tab": true, "\t": true}

func newValidator() *validator.Validate {
	v := validator.New()
	// a comma cannot appear inside a oneof tag
	_ = v.RegisterValidation("delimiter", func(fl validator.FieldLevel) bool {
		return delimiters[fl.Field().String()]
	})
	return v
}

// Validate checks field constraints declared in struct tags.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.propensity/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > .env file > defaults.
func Load(cfgFile string) (*Global, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PROPENSITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.RunsDir == "" {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		c.RunsDir = filepath.Join(dir, "runs")
	}
	return &c, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("click_data", "click_data.csv")
	v.SetDefault("sales_data", "sales_data.csv")
	v.SetDefault("demographic_data", "demographic_data.csv")
	v.SetDefault("segment_data", "segment_data.csv")
	v.SetDefault("id_column", "customer_id")
	v.SetDefault("product_column", "product_id")
	v.SetDefault("delimiter", "")
	v.SetDefault("features", []string{"click_rate", "purchase_frequency", "age", "income", "gender"})
	v.SetDefault("test_size", 0.25)
	v.SetDefault("seed", 42)
	v.SetDefault("trees", 100)
	v.SetDefault("max_features", 0)
	v.SetDefault("cv_folds", 5)
	v.SetDefault("curve_points", 10)
	v.SetDefault("skip_learning_curve", false)
	v.SetDefault("hist_bins", 30)
	v.SetDefault("plot_width_in", 6.0)
	v.SetDefault("plot_height_in", 4.5)
	v.SetDefault("primary_product", "67890")
	v.SetDefault("products", []string{"12345", "67890", "54321"})
	v.SetDefault("top_n", 10)
	v.SetDefault("top_n_per_product", 3)
	v.SetDefault("decision_threshold", 0.5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".propensity"), nil
}
