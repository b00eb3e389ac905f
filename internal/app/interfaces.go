package app

import (
	evbus "github.com/asaskevich/EventBus"
	"github.com/nmoller/wapanel/config"
	"github.com/nmoller/wapanel/internal/provider"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// BusProvider provides the in-process event bus
type BusProvider interface {
	Bus() evbus.Bus
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ProviderRegistry provides backend variant resolution
type ProviderRegistry interface {
	Providers() *provider.Registry
}

// WebhookProvider provides the cloud webhook ingest processor
type WebhookProvider interface {
	Webhooks() *provider.WebhookProcessor
}

// AppContext combines all provider interfaces for full application context.
// Handlers should depend on specific providers or this combined interface.
type AppContext interface {
	DBProvider
	ConfigProvider
	BusProvider
	SchedulerProvider
	ProviderRegistry
	WebhookProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
