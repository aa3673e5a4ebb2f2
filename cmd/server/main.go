package main

import (
	"fmt"
	"os"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/config"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/server"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/util"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	cfg := config.Load()
	if err := config.InitLogger(cfg, "server"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	server.Init(cfg)
}
