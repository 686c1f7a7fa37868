package config

import "time"

// GDC API endpoints used when nothing else is configured.
const (
	DefaultFilesEndpoint = "https://api.gdc.cancer.gov/files"
	DefaultDataEndpoint  = "https://api.gdc.cancer.gov/data"
)

const (
	// Default number of concurrent sample fetches. Raising it tends to
	// trip GDC rate limiting.
	DefaultWorkers = 25

	// Per-request timeout for both metadata queries and data fetches.
	DefaultRequestTimeout = 30 * time.Second

	// Maximum metadata hits requested per site.
	DefaultPageSize = 2000
)

// DefaultSites are the GDC primary sites processed when --site is not given.
var DefaultSites = []string{
	"Adrenal Gland", "Bladder", "Bone Marrow and Blood", "Brain", "Breast",
	"Cervix", "Colorectal", "Esophagus", "Eye", "Head and Neck", "Kidney",
	"Liver", "Lung", "Lymph Nodes", "Ovary", "Pancreas", "Pleura",
	"Prostate", "Rectum", "Skin", "Soft Tissue", "Stomach", "Testis",
	"Thymus", "Thyroid", "Uterus",
}

// Config holds application settings.
type Config struct {
	FilesEndpoint  string        `koanf:"files_endpoint"`
	DataEndpoint   string        `koanf:"data_endpoint"`
	Sites          []string      `koanf:"sites"`
	OutputDir      string        `koanf:"output_dir"`
	DbPath         string        `koanf:"db_path"`
	Workers        int           `koanf:"workers"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	PageSize       int           `koanf:"page_size"`

	// SortColumns sorts sample columns lexicographically after aggregation
	// instead of leaving them in completion order.
	SortColumns bool `koanf:"sort_columns"`

	// RunTimeout bounds one full run. Zero means no overall deadline.
	RunTimeout time.Duration `koanf:"run_timeout"`

	// MetricsAddr exposes prometheus metrics during a run when non-empty,
	// e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	LogOutput string `koanf:"log_output"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		FilesEndpoint:  DefaultFilesEndpoint,
		DataEndpoint:   DefaultDataEndpoint,
		Sites:          append([]string{}, DefaultSites...),
		OutputDir:      "./tcga_matrices",
		DbPath:         "./gdcmatrix_state.duckdb",
		Workers:        DefaultWorkers,
		RequestTimeout: DefaultRequestTimeout,
		PageSize:       DefaultPageSize,
		LogLevel:       "info",
		LogFormat:      "text",
		LogOutput:      "stderr",
	}
}
