package config

import (
	"os"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Secret string `yaml:"secret" json:"secret"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WhatsappConfig holds the provider-layer settings. GraphEndpoint is
// overridable so tests can point the cloud transport at a local server.
type WhatsappConfig struct {
	GraphEndpoint  string `yaml:"graph_endpoint" json:"graph_endpoint"`
	GraphVersion   string `yaml:"graph_version" json:"graph_version"`
	RetentionDays  int    `yaml:"retention_days" json:"retention_days"`
	EncryptionKey  string `yaml:"encryption_key" json:"encryption_key"`
	WebhookToken   string `yaml:"webhook_token" json:"webhook_token"`
	WebhookWorkers int    `yaml:"webhook_workers" json:"webhook_workers"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DBConfig       `yaml:"database" json:"database"`
	Whatsapp WhatsappConfig `yaml:"whatsapp" json:"whatsapp"`
	Logger   LoggerConfig   `yaml:"logger" json:"logger"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "wapanel",
		Location: "America/Montevideo",
		Workdir:  "/var/wapanel",
		Debug:    true,
	},
	Web: WebConfig{
		Host:   "0.0.0.0",
		Port:   1816,
		Secret: "9b6de5cc-wapanel-0cfd-a66d-v8panel3164",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "wapanel_v1",
		User:     "postgres",
		Passwd:   "root",
		MaxConn:  100,
		IdleConn: 10,
	},
	Whatsapp: WhatsappConfig{
		GraphEndpoint:  "https://graph.facebook.com",
		GraphVersion:   "v21.0",
		RetentionDays:  7,
		WebhookWorkers: 8,
	},
	Logger: LoggerConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/wapanel/wapanel.log",
	},
}

func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}
	setEnvValue("WAPANEL_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvBoolValue("WAPANEL_SYSTEM_DEBUG", &cfg.System.Debug)
	setEnvValue("WAPANEL_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("WAPANEL_WEB_PORT", &cfg.Web.Port)
	setEnvValue("WAPANEL_WEB_SECRET", &cfg.Web.Secret)
	setEnvValue("WAPANEL_DB_TYPE", &cfg.Database.Type)
	setEnvValue("WAPANEL_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("WAPANEL_DB_PORT", &cfg.Database.Port)
	setEnvValue("WAPANEL_DB_NAME", &cfg.Database.Name)
	setEnvValue("WAPANEL_DB_USER", &cfg.Database.User)
	setEnvValue("WAPANEL_DB_PWD", &cfg.Database.Passwd)
	setEnvValue("WHATSAPP_GRAPH_ENDPOINT", &cfg.Whatsapp.GraphEndpoint)
	setEnvValue("WHATSAPP_GRAPH_VERSION", &cfg.Whatsapp.GraphVersion)
	setEnvIntValue("WHATSAPP_RETENTION_DAYS", &cfg.Whatsapp.RetentionDays)
	setEnvValue("WHATSAPP_ENCRYPTION_KEY", &cfg.Whatsapp.EncryptionKey)
	setEnvValue("WHATSAPP_WEBHOOK_TOKEN", &cfg.Whatsapp.WebhookToken)
	return cfg
}

func setEnvValue(name string, val *string) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue
	}
}

func setEnvIntValue(name string, val *int) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = cast.ToInt(evalue)
	}
}

func setEnvBoolValue(name string, val *bool) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = cast.ToBool(evalue)
	}
}
