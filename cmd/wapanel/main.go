package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nmoller/wapanel/config"
	"github.com/nmoller/wapanel/internal/adminapi"
	"github.com/nmoller/wapanel/internal/app"
	"github.com/nmoller/wapanel/internal/webserver"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("c", "/etc/wapanel.yml", "config file path")
	initDb     = flag.Bool("initdb", false, "drop and recreate the database schema")
	showVer    = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println("wapanel", version)
		os.Exit(0)
	}

	cfg := config.LoadConfig(*configFile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initDb {
		application.InitDb()
		zap.S().Info("database initialized")
		os.Exit(0)
	}

	webserver.Init(application)
	adminapi.Init()

	if err := webserver.Listen(); err != nil {
		zap.S().Fatalf("webserver stopped: %v", err)
	}
}
