package main

import (
	"flag"
	"log"

	"pulse/config"
	"pulse/server"
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config (optional, env PULSE_* works too)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app := &server.App{}
	app.Initialize(cfg)
	if err := app.Run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
