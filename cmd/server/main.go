package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/simp-lee/hrdesk/internal/app"
	"github.com/simp-lee/hrdesk/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	check := flag.Bool("check", false, "validate the configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}
	if *check {
		fmt.Printf("configuration ok: mode=%s database=%s backend=%s\n", cfg.Server.Mode, cfg.Database.Driver, cfg.Backend.BaseURL)
		return
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal("failed to create app: ", err)
	}

	if err := a.Run(); err != nil {
		log.Fatal("server error: ", err)
	}
}
