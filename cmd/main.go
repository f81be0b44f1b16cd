// FilePath: cmd/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/server"
	nuts "github.com/vaudience/go-nuts"
)

// @title MailGuard Ingestion API
// @version 1.0
// @description Device telemetry ingestion, reconciliation and image correlation for smart mailboxes.
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting MailGuard Ingest v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"    __  ___      _ __________                     __",
		"   /  |/  /___ _(_) / ____/ /_  ______ __________/ /",
		"  / /|_/ / __ `/ / / / __/ / / / / __ `/ ___/ __  / ",
		" / /  / / /_/ / / / /_/ / /_/ / / /_/ / /  / /_/ /  ",
		"/_/  /_/\\__,_/_/_/\\____/\\__,_/  \\__,_/_/   \\__,_/   ",
		"..................................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
