package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"

	"missionlog/internal/datastore"
	"missionlog/internal/models"
	"missionlog/internal/services"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	app := &cli.App{
		Name: "migrate",
		Commands: []*cli.Command{
			commandMigration(),
			commandConfigMigration(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandMigration() *cli.Command {
	return &cli.Command{
		Name: "migrate",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			steps := []struct {
				name   string
				create func(context.Context, *bun.DB) error
			}{
				{"mission", datastore.CreateTableMission},
				{"mission_participant", datastore.CreateTableMissionParticipant},
				{"mission_execution", datastore.CreateTableMissionExecution},
				{"daily_mission_instance", datastore.CreateTableDailyMissionInstance},
				{"user_experience", datastore.CreateTableUserExperience},
				{"user_achievement", datastore.CreateTableUserAchievement},
				{"config", datastore.CreateTableConfig},
			}

			for _, step := range steps {
				if err := step.create(ctx, db); err != nil {
					log.Fatalf("create %s: %v", step.name, err)
				}
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

func commandConfigMigration() *cli.Command {
	return &cli.Command{
		Name:        "migrate-config",
		Description: "Insert default configs to db",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			configs := []models.Config{
				{Key: services.CONFIG_SAGA_STEP_TIMEOUT_SECONDS, Value: strconv.Itoa(services.DEFAULT_SAGA_STEP_TIMEOUT_SECONDS)},
				{Key: services.CONFIG_IMAGE_MAX_SIZE_MB, Value: strconv.Itoa(services.DEFAULT_IMAGE_MAX_SIZE_MB)},
				{Key: services.CONFIG_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE, Value: strconv.Itoa(services.DEFAULT_IMAGE_UPLOAD_RATE_LIMIT_PER_MINUTE)},
				{Key: services.CONFIG_SHARE_RATE_LIMIT_PER_MINUTE, Value: strconv.Itoa(services.DEFAULT_SHARE_RATE_LIMIT_PER_MINUTE)},
				{Key: services.CONFIG_MAX_RANGE_DAYS, Value: strconv.Itoa(services.DEFAULT_MAX_RANGE_DAYS)},
			}

			store := datastore.NewConfigStore(db)
			for _, config := range configs {
				config := config
				if err := store.InsertConfig(ctx, &config); err != nil {
					log.Println(err)
				}
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

func getDb() (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(os.Getenv("DB_DSN")),
		pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
	))

	db := bun.NewDB(sqldb, pgdialect.New())
	return db, nil
}
