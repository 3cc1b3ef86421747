package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/psantana5/hitctl/pkg/models"
	"github.com/spf13/viper"
)

// ErrNoConfig is returned when no configuration file can be located
var ErrNoConfig = errors.New("no configuration file found")

const (
	SandboxEndpoint    = "https://mturk-requester-sandbox.us-east-1.amazonaws.com"
	SandboxPreviewURL  = "https://workersandbox.mturk.com/mturk/preview?groupId="
	ProductionEndpoint = "https://mturk-requester.us-east-1.amazonaws.com"
)

// Config is loaded once per invocation and handed to every component explicitly
type Config struct {
	DatasetFolder   string        `mapstructure:"dataset_folder"`
	BucketName      string        `mapstructure:"bucket_name"`
	JobFilename     string        `mapstructure:"job_filename"`
	TemplatesFolder string        `mapstructure:"templates_folder"`
	AWS             AWSConfig     `mapstructure:"aws"`
	MTurk           MTurkConfig   `mapstructure:"mturk"`
	Tasks           []models.Task `mapstructure:"tasks"`
}

// AWSConfig holds credentials. Empty keys fall back to the default AWS credential chain.
type AWSConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region_name"`
}

// MTurkConfig selects the sandbox or production marketplace
type MTurkConfig struct {
	EndpointURL string `mapstructure:"endpoint_url"`
	PreviewURL  string `mapstructure:"preview_url"`
	// RequestsPerSecond paces API calls; 0 disables pacing
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// envKeys are bound to HITCTL_<KEY> so they can be set from the environment
// or .env even when the config file leaves them out
var envKeys = []string{
	"dataset_folder",
	"bucket_name",
	"job_filename",
	"templates_folder",
	"aws.access_key_id",
	"aws.secret_access_key",
	"aws.region_name",
	"mturk.endpoint_url",
	"mturk.preview_url",
	"mturk.requests_per_second",
	"mturk.burst",
}

// EnvName is the environment variable overriding key
func EnvName(key string) string {
	return "HITCTL_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("job_filename", "jobs.yaml")
	v.SetDefault("templates_folder", "templates")
	v.SetDefault("aws.region_name", "us-east-1")
	v.SetDefault("mturk.endpoint_url", SandboxEndpoint)
	v.SetDefault("mturk.preview_url", SandboxPreviewURL)
	v.SetDefault("mturk.requests_per_second", 5)
	v.SetDefault("mturk.burst", 5)
}

// Load reads path (or the best candidate under dir when path is empty),
// applies HITCTL_* environment overrides and validates the result.
func Load(v *viper.Viper, path, dir string) (*Config, error) {
	if path == "" {
		found, err := Locate(dir)
		if err != nil {
			return nil, err
		}
		path = found
	}

	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("HITCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Locate returns the YAML file in dir with the highest leading number,
// e.g. config/20-prod.yaml wins over config/10-sandbox.yaml.
func Locate(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w in %s", ErrNoConfig, dir)
		}
		return "", fmt.Errorf("failed to read config directory %s: %w", dir, err)
	}

	best := ""
	bestPriority := -1
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, "yaml") {
			continue
		}
		priority, ok := leadingNumber(name)
		if !ok {
			continue
		}
		if priority > bestPriority {
			best = name
			bestPriority = priority
		}
	}

	if best == "" {
		return "", fmt.Errorf("%w in %s", ErrNoConfig, dir)
	}
	return filepath.Join(dir, best), nil
}

func leadingNumber(name string) (int, bool) {
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the invariants the rest of the tool relies on
func (c *Config) Validate() error {
	if c.JobFilename == "" {
		return errors.New("job_filename is required")
	}
	seen := make(map[string]bool, len(c.Tasks))
	for i, task := range c.Tasks {
		if task.Name == "" {
			return fmt.Errorf("tasks[%d]: name is required", i)
		}
		if seen[task.Name] {
			return fmt.Errorf("tasks[%d]: duplicate task name %q", i, task.Name)
		}
		seen[task.Name] = true
		if task.Template == "" {
			return fmt.Errorf("task %s: template is required", task.Name)
		}
	}
	return nil
}

// Task returns the task named name
func (c *Config) Task(name string) (models.Task, error) {
	for _, task := range c.Tasks {
		if task.Name == name {
			return task, nil
		}
	}
	return models.Task{}, fmt.Errorf("task %q is not configured", name)
}

// SelectTasks returns the named tasks in config order, or every task when all is set
func (c *Config) SelectTasks(names []string, all bool) ([]models.Task, error) {
	if all {
		return c.Tasks, nil
	}
	if len(names) == 0 {
		return nil, errors.New("no task to select: pass --name or --all-tasks")
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := c.Task(name); err != nil {
			return nil, err
		}
		wanted[name] = true
	}

	var tasks []models.Task
	for _, task := range c.Tasks {
		if wanted[task.Name] {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// BucketURL is the public URL prefix of dataset images
func (c *Config) BucketURL() string {
	if c.BucketName == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/", c.BucketName)
}

// PreviewURL returns the worker-facing preview link for a HIT group
func (c *Config) PreviewURL(groupID string) string {
	return c.MTurk.PreviewURL + groupID
}

// IsSandbox reports whether HITs go to the requester sandbox
func (c *Config) IsSandbox() bool {
	return strings.Contains(c.MTurk.EndpointURL, "sandbox")
}
