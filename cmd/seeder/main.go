package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/nearwave/geocampaign/internal/config"
	"github.com/nearwave/geocampaign/pkg/logger"

	_ "github.com/lib/pq"
)

// Seeds demo data for local development. Run after migrations:
//
//	go run ./cmd/seeder --env=.env
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.Get().PostgresWriteHost,
		config.Get().PostgresWritePort,
		config.Get().PostgresWriteUser,
		config.Get().PostgresWritePassword,
		config.Get().PostgresWriteDatabase,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer db.Close()

	seedFiles := []string{
		"seed/customers.sql",
		"seed/targeting_locations.sql",
		"seed/campaigns.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Error("failed to read seed file", "file", file, "error", err)
			return
		}

		if _, err := db.Exec(string(content)); err != nil {
			logger.Error("failed to execute seed file", "file", file, "error", err)
			return
		}
		logger.Info("seeded", "file", file)
	}

	logger.Info("database seeding completed")
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
