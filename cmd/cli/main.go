package main

import (
	"os"
	"strings"

	"github.com/nearwave/geocampaign/internal/config"
	"github.com/nearwave/geocampaign/pkg/logger"
	"github.com/nearwave/geocampaign/pkg/pg"
)

// Applies pending schema migrations. Usage:
//
//	cli [--env=.env] [--dir=./migrations]
func main() {
	if err := config.Load(resolvePath("--env=", ".env")); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	dir := resolvePath("--dir=", "./migrations")
	if dir == "" {
		logger.Error("migrations directory not found")
		os.Exit(1)
	}

	if err := pg.Migrate(pgConf, dir); err != nil {
		logger.Error("running migrations", "error", err, "dir", dir)
		os.Exit(1)
	}
	logger.Info("migrations applied", "dir", dir)
}

// resolvePath returns the value of the given flag if it names an existing
// path, otherwise the fallback if that exists, otherwise "".
func resolvePath(flag, fallback string) string {
	candidate := fallback
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, flag) {
			candidate = strings.TrimPrefix(arg, flag)
			break
		}
	}
	if _, err := os.Stat(candidate); err != nil {
		logger.Error("path not accessible", "path", candidate, "error", err)
		return ""
	}
	return candidate
}
