package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/drstein77/salesdash/internal/report"
)

type Options struct {
	runAddr       string
	logLevel      string
	dataBaseDSN   string
	migrationsDir string

	dateColumn     string
	amountColumn   string
	categoryColumn string
	columnsFile    string

	maxUploadMB int
	previewRows int

	envFile string
}

func NewOptions() *Options {
	return new(Options)
}

// RegisterFlags loads the .env file and binds the options to fs. Environment
// variables provide the defaults, command line flags override them.
func (o *Options) RegisterFlags(fs *pflag.FlagSet) {
	o.envFile = loadEnvFile()

	defaults := report.DefaultFields()

	fs.StringVarP(&o.runAddr, "address", "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	fs.StringVarP(&o.logLevel, "log-level", "l", getEnvOrDefault("LOG_LEVEL", "info"), "log level")
	fs.StringVarP(&o.dataBaseDSN, "database", "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string; empty disables upload history")
	fs.StringVar(&o.migrationsDir, "migrations", getEnvOrDefault("MIGRATIONS_DIR", "migrations"), "directory with database migrations")

	fs.StringVar(&o.dateColumn, "date-column", getEnvOrDefault("DATE_COLUMN", defaults.Date), "name of the order date column")
	fs.StringVar(&o.amountColumn, "amount-column", getEnvOrDefault("AMOUNT_COLUMN", defaults.Amount), "name of the sales amount column")
	fs.StringVar(&o.categoryColumn, "category-column", getEnvOrDefault("CATEGORY_COLUMN", defaults.Category), "name of the product category column")
	fs.StringVarP(&o.columnsFile, "columns", "c", getEnvOrDefault("COLUMNS_FILE", ""), "YAML file with the column names, overrides the column flags")

	fs.IntVar(&o.maxUploadMB, "max-upload-mb", getEnvIntOrDefault("MAX_UPLOAD_MB", 32), "maximum upload size in megabytes")
	fs.IntVar(&o.previewRows, "preview-rows", getEnvIntOrDefault("PREVIEW_ROWS", report.DefaultPreviewRows), "number of raw rows shown in the preview")
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) MigrationsDir() string {
	return o.migrationsDir
}

func (o *Options) MaxUploadBytes() int64 {
	return int64(o.maxUploadMB) << 20
}

func (o *Options) PreviewRows() int {
	return o.previewRows
}

// EnvFile returns the path of the loaded .env file, empty if none was found.
func (o *Options) EnvFile() string {
	return o.envFile
}

// Fields returns the column binding: the columns file when one is set,
// the column flags otherwise.
func (o *Options) Fields() (report.Fields, error) {
	fields := report.Fields{
		Date:     o.dateColumn,
		Amount:   o.amountColumn,
		Category: o.categoryColumn,
	}
	if o.columnsFile == "" {
		return fields, nil
	}
	return LoadColumns(o.columnsFile, fields)
}

// Validate reports every invalid option at once.
func (o *Options) Validate() error {
	var problems []string

	if o.runAddr == "" {
		problems = append(problems, "run address cannot be empty")
	}
	if o.maxUploadMB < 1 {
		problems = append(problems, fmt.Sprintf("invalid max upload size %d MB: must be at least 1", o.maxUploadMB))
	}
	if o.previewRows < 1 {
		problems = append(problems, fmt.Sprintf("invalid preview rows %d: must be at least 1", o.previewRows))
	}

	fields, err := o.Fields()
	if err != nil {
		problems = append(problems, err.Error())
	} else {
		if fields.Date == "" || fields.Amount == "" || fields.Category == "" {
			problems = append(problems, "column names cannot be empty")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// LoadColumns reads a YAML column binding. Keys missing from the file keep
// their value from base.
func LoadColumns(path string, base report.Fields) (report.Fields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.Fields{}, fmt.Errorf("reading columns file: %w", err)
	}
	var file report.Fields
	if err := yaml.Unmarshal(data, &file); err != nil {
		return report.Fields{}, fmt.Errorf("parsing columns file: %w", err)
	}
	if file.Date != "" {
		base.Date = file.Date
	}
	if file.Amount != "" {
		base.Amount = file.Amount
	}
	if file.Category != "" {
		base.Category = file.Category
	}
	return base, nil
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// loadEnvFile loads the first .env file found in the working directory or
// two levels up (when started from cmd/salesdash) and returns its path.
func loadEnvFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, path := range []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(cwd, "..", "..", ".env"),
	} {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}
