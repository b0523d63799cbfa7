package config

import "time"

// Config is shared by all Lambda functions. Each function only reads the
// sections it needs.
type Config struct {
	AI       AIConfig       `yaml:"ai"`
	Storage  StorageConfig  `yaml:"storage"`
	Planner  PlannerConfig  `yaml:"planner"`
	Line     LineConfig     `yaml:"line"`
	Reminder ReminderConfig `yaml:"reminder"`
	CORS     CORSConfig     `yaml:"cors"`
	Log      LogConfig      `yaml:"log"`
}

// AIConfig points at an OpenAI-compatible chat completion API. An empty key
// switches the functions to simulated answers.
type AIConfig struct {
	APIKey         string        `yaml:"api_key"         env:"AI_API_KEY"`
	BaseURL        string        `yaml:"base_url"        env:"AI_BASE_URL"        env-default:"https://api.groq.com/openai/v1"`
	Model          string        `yaml:"model"           env:"AI_MODEL"           env-default:"llama-3.3-70b-versatile"`
	MaxAttempts    int           `yaml:"max_attempts"    env:"AI_MAX_ATTEMPTS"    env-default:"3"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"AI_INITIAL_BACKOFF" env-default:"1s"`
	ContextLimit   int           `yaml:"context_limit"   env:"AI_CONTEXT_LIMIT"   env-default:"12000"`
}

type StorageConfig struct {
	UserTableName string `yaml:"user_table_name" env:"USER_TABLE_NAME" env-required:"true"`
}

type PlannerConfig struct {
	SlotsPerDay int    `yaml:"slots_per_day" env:"PLANNER_SLOTS_PER_DAY" env-default:"0"`
	Timezone    string `yaml:"timezone"      env:"TIMEZONE"              env-default:"UTC"`
}

type LineConfig struct {
	ChannelSecret string `yaml:"channel_secret" env:"CHANNEL_SECRET"`
	ChannelToken  string `yaml:"channel_token"  env:"CHANNEL_TOKEN"`
}

type ReminderConfig struct {
	FunctionArn  string `yaml:"function_arn"  env:"REMINDER_FUNCTION_ARN"`
	FunctionName string `yaml:"function_name" env:"REMINDER_FUNCTION_NAME" env-default:"study-reminder"`
	RoleArn      string `yaml:"role_arn"      env:"SCHEDULER_ROLE_ARN"`
	GroupName    string `yaml:"group_name"    env:"SCHEDULER_GROUP_NAME"   env-default:"default"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Content-Type"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func (c *Config) SimulateAI() bool {
	return c.AI.APIKey == ""
}

func (c *Config) LineEnabled() bool {
	return c.Line.ChannelSecret != "" && c.Line.ChannelToken != ""
}

// RemindersEnabled reports whether daily schedules can be created.
func (c *Config) RemindersEnabled() bool {
	return c.Reminder.FunctionArn != "" && c.Reminder.RoleArn != ""
}

// Location is the zone used for "today". Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Planner.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
