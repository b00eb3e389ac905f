package app

import (
	"fmt"
	"os"
	"path"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	evbus "github.com/asaskevich/EventBus"
	"github.com/nmoller/wapanel/config"
	"github.com/nmoller/wapanel/internal/domain"
	"github.com/nmoller/wapanel/internal/provider"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	bus       evbus.Bus
	registry  *provider.Registry
	webhooks  *provider.WebhookProcessor
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ BusProvider       = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) Bus() evbus.Bus {
	return a.bus
}

// Providers returns the backend registry serving device operations.
func (a *Application) Providers() *provider.Registry {
	return a.registry
}

// Webhooks returns the cloud webhook ingest processor.
func (a *Application) Webhooks() *provider.WebhookProcessor {
	return a.webhooks
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.Logger.FileEnable {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Logger.Filename)
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before wiring providers
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	// wait for database initialization to complete
	go func() {
		time.Sleep(3 * time.Second)
		a.checkSuper()
		a.checkSettings()
		a.checkDefaultTemplates()
		a.checkDefaultLabels()
	}()

	a.bus = evbus.New()
	a.initProviders()
	a.initJob()
}

// initProviders wires the backend registry. The session variant stays
// nil-managed until an external engine is attached via AttachManager.
func (a *Application) initProviders() {
	cloud := provider.NewCloudProvider(a.gormDB, a.bus, provider.CloudOptions{
		GraphEndpoint: a.appConfig.Whatsapp.GraphEndpoint,
		GraphVersion:  a.appConfig.Whatsapp.GraphVersion,
		RetentionDays: a.appConfig.Whatsapp.RetentionDays,
		EncryptionKey: a.appConfig.Whatsapp.EncryptionKey,
	})
	a.registry = provider.NewRegistry(a.gormDB, cloud, nil)

	webhooks, err := provider.NewWebhookProcessor(a.gormDB, a.bus, a.appConfig.Whatsapp.WebhookWorkers)
	if err != nil {
		zap.S().Errorf("webhook processor init failed: %v", err)
		return
	}
	a.webhooks = webhooks
}

// AttachManager binds a live session engine and rebuilds the registry so
// session-variant devices become routable.
func (a *Application) AttachManager(manager provider.DeviceManager) {
	cloud := provider.NewCloudProvider(a.gormDB, a.bus, provider.CloudOptions{
		GraphEndpoint: a.appConfig.Whatsapp.GraphEndpoint,
		GraphVersion:  a.appConfig.Whatsapp.GraphVersion,
		RetentionDays: a.appConfig.Whatsapp.RetentionDays,
		EncryptionKey: a.appConfig.Whatsapp.EncryptionKey,
	})
	a.registry = provider.NewRegistry(a.gormDB, cloud, provider.NewSessionProvider(manager))
}

func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	logLevel := gormlogger.Silent
	if cfg.Debug {
		logLevel = gormlogger.Info
	}
	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)}

	switch cfg.Type {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(path.Join(workdir, cfg.Name+".db")), gormConfig)
		if err != nil {
			zap.S().Panicf("sqlite open failed: %v", err)
		}
		return db
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		db, err := gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			zap.S().Panicf("postgres open failed: %v", err)
		}
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.SetMaxOpenConns(cfg.MaxConn)
			sqlDB.SetMaxIdleConns(cfg.IdleConn)
		}
		return db
	}
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.webhooks != nil {
		a.webhooks.Release()
	}
	_ = zap.L().Sync()
}
