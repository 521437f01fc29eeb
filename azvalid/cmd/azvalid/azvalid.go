package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/ezquant/azvalid/azvalid/plus/models"
	"github.com/ezquant/azvalid/azvalid/storage"
	"github.com/ezquant/azvalid/examples/validating"
)

func main() {
	app := &cli.App{
		Name:     "azvalid",
		HelpName: "azvalid",
		Usage:    "Walk-forward validation of trading strategies",
		Commands: []*cli.Command{
			{
				Name:     "validate",
				HelpName: "validate",
				Usage:    "Run walk-forward validation over historical data",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "eg. ./user_data/config_CrossEMA.yml",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "candle CSV file, eg. ./testdata/btc-1d.csv",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "pair",
						Aliases:  []string{"p"},
						Usage:    "eg. BTCUSDT",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "start",
						Aliases:  []string{"s"},
						Usage:    "eg. 2024-01-01",
						Layout:   "2006-01-02",
						Required: true,
					},
					&cli.TimestampFlag{
						Name:     "end",
						Aliases:  []string{"e"},
						Usage:    "eg. 2024-12-31",
						Layout:   "2006-01-02",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "train",
						Usage: "training window override, eg. 90d",
					},
					&cli.StringFlag{
						Name:  "test",
						Usage: "test window override, eg. 30d",
					},
					&cli.StringFlag{
						Name:  "step",
						Usage: "step override, eg. 30d",
					},
					&cli.StringFlag{
						Name:  "storage",
						Usage: "sqlite file to persist runs, eg. ./user_data/runs.db",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "write the full result JSON to this file",
					},
				},
				Action: func(c *cli.Context) error {
					config, err := models.ReadConfig(c.String("config"))
					if err != nil {
						log.Fatalf("cannot read config file: %v", err)
					}

					if err := applyWindowOverrides(c, &config.WalkForward); err != nil {
						return err
					}

					result, err := validating.Run(config, validating.Options{
						DataFile:    c.String("data"),
						Ticker:      c.String("pair"),
						Start:       *c.Timestamp("start"),
						End:         *c.Timestamp("end"),
						StoragePath: c.String("storage"),
					})
					if err != nil {
						return err
					}

					result.Summary()

					if output := c.String("output"); output != "" {
						payload, err := result.MarshalJSONString()
						if err != nil {
							return err
						}
						if err := os.WriteFile(output, []byte(payload), 0644); err != nil {
							return err
						}
						fmt.Printf("result written to %s\n", output)
					}
					return nil
				},
			},
			{
				Name:     "runs",
				HelpName: "runs",
				Usage:    "List persisted validation runs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "storage",
						Aliases:  []string{"s"},
						Usage:    "eg. ./user_data/runs.db",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					store, err := storage.FromFile(c.String("storage"))
					if err != nil {
						return err
					}

					runs, err := store.Runs()
					if err != nil {
						return err
					}

					table := tablewriter.NewWriter(os.Stdout)
					table.SetHeader([]string{"Digest", "Ticker", "Period", "Objective", "Folds", "Score", "Tier"})
					for _, run := range runs {
						table.Append([]string{
							run.Digest[:12],
							run.Ticker,
							fmt.Sprintf("%s..%s", run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02")),
							run.ObjectiveMetric,
							strconv.Itoa(run.TotalFolds),
							fmt.Sprintf("%.1f", run.StabilityScore),
							run.StabilityTier,
						})
					}
					table.Render()
					return nil
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// applyWindowOverrides lets CLI flags like --train 90d override the YAML
// window sizes.
func applyWindowOverrides(c *cli.Context, cfg *models.WalkForwardConfig) error {
	for flag, target := range map[string]*int{
		"train": &cfg.TrainDays,
		"test":  &cfg.TestDays,
		"step":  &cfg.StepDays,
	} {
		value := c.String(flag)
		if value == "" {
			continue
		}
		duration, err := str2duration.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid --%s value %q: %w", flag, value, err)
		}
		*target = int(duration.Hours() / 24)
	}
	return nil
}
