package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"missionlog/internal/datastore"
	"missionlog/internal/models"
	"missionlog/internal/pkg"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
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
		Name: "export",
		Commands: []*cli.Command{
			commandExport(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandExport() *cli.Command {
	now := time.Now().UTC()
	return &cli.Command{
		Name:  "export",
		Usage: "write a user's completed executions of one month as csv",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "user",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "year",
				Value: now.Year(),
			},
			&cli.IntFlag{
				Name:  "month",
				Value: int(now.Month()),
			},
			&cli.StringFlag{
				Name:  "output",
				Value: "./executions.csv",
			},
		},
		Action: func(c *cli.Context) error {
			vs, err := env.EnvsRequired("DB_DSN")
			if err != nil {
				return err
			}

			from, to, err := pkg.MonthRange(c.Int("year"), c.Int("month"))
			if err != nil {
				return err
			}

			sqldb := sql.OpenDB(pgdriver.NewConnector(
				pgdriver.WithDSN(vs["DB_DSN"]),
				pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
			))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			rows, err := loadCompleted(c.Context, db, c.Int64("user"), from, to)
			if err != nil {
				return err
			}

			file, err := os.Create(c.String("output"))
			if err != nil {
				return err
			}
			defer file.Close()

			if err := writeCSV(file, rows); err != nil {
				return err
			}

			fmt.Printf("exported %d executions to %s\n", len(rows), c.String("output"))
			return nil
		},
	}
}

func loadCompleted(ctx context.Context, db bun.IDB, userID int64, from time.Time, to time.Time) ([]*models.ExecutionResponse, error) {
	var executions []*models.MissionExecution
	var instances []*models.DailyMissionInstance

	errWg, errCtx := errgroup.WithContext(ctx)
	errWg.Go(func() error {
		var err error
		executions, err = datastore.NewExecutionStore(db).ListCompletedExecutions(errCtx, userID, from, to)
		return err
	})
	errWg.Go(func() error {
		var err error
		instances, err = datastore.NewInstanceStore(db).ListCompletedInstances(errCtx, userID, from, to)
		return err
	})
	if err := errWg.Wait(); err != nil {
		return nil, err
	}

	rows := make([]*models.ExecutionResponse, 0, len(executions)+len(instances))
	for _, execution := range executions {
		rows = append(rows, execution.Response())
	}
	for _, instance := range instances {
		rows = append(rows, instance.Response())
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].MissionID < rows[j].MissionID
	})
	return rows, nil
}

func writeCSV(file *os.File, rows []*models.ExecutionResponse) error {
	w := csv.NewWriter(file)
	if err := w.Write([]string{"date", "kind", "mission_id", "duration_minutes", "exp_earned", "note", "image_url"}); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Date,
			string(row.Kind),
			strconv.FormatInt(row.MissionID, 10),
			strconv.Itoa(row.DurationMinutes),
			strconv.Itoa(row.ExpEarned),
			row.Note,
			row.ImageURL,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
