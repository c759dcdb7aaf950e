/*
 * Project: rpc-lite
 * ---------------------
 * Authors:
 *   Minjian Chen 813534
 *   Shijie Liu   813277
 *   Weizhi Xu    752454
 *   Wenqing Xue  813044
 *   Zijun Chen   813190
 */

package main

import (
	"log"
	"os"

	"github.com/PwzXxm/rpc-lite/client"
	"github.com/PwzXxm/rpc-lite/functests"
	"github.com/PwzXxm/rpc-lite/simulation"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	// run simulation
	cmdSimulation := &cli.Command{
		Name:  "simulation",
		Usage: "commands for running simulation",
		Subcommands: []*cli.Command{
			{
				Name:  "local",
				Usage: "start a local simulation",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "n", Usage: "number of workers", Required: true},
				},
				Action: func(c *cli.Context) error {
					if c.Int("n") == 0 {
						return errors.New("please provide -n")
					}
					return localSimulation(c.Int("n"))
				},
			},
		},
	}
	// run functional test
	cmdFunctional := &cli.Command{
		Name:  "functionaltest",
		Usage: "commands for running functional tests",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list all avaliable tests",
				Action: func(c *cli.Context) error {
					functests.List()
					return nil
				},
			},
			{
				Name:  "count",
				Usage: "count all avaliable tests",
				Action: func(c *cli.Context) error {
					functests.Count()
					return nil
				},
			},
			{
				Name:  "run",
				Usage: "run a specific tests",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "n", Usage: "test id", Required: true},
				},
				Action: func(c *cli.Context) error {
					return functests.Run(c.Int("n"))
				},
			},
		},
	}
	// run a worker daemon
	cmdWorker := &cli.Command{
		Name:  "worker",
		Usage: "commands for running a worker",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "c", Usage: "worker config file path", Required: true},
		},
		Action: func(c *cli.Context) error {
			return StartWorkerFromFile(c.Path("c"))
		},
	}
	// run complex testcases where calls are generated randomly
	cmdIntegrationTest := &cli.Command{
		Name:  "integrationtest",
		Usage: "run complex testcases where calls are generated randomly",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "t", Usage: "time in minutes", Required: true},
		},
		Action: func(c *cli.Context) error {
			return functests.RunComplex(c.Int64("t"))
		},
	}
	// run starting client
	cmdClient := &cli.Command{
		Name:  "client",
		Usage: "commands for starting client",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "c", Usage: "client config file path", Required: true},
			&cli.StringFlag{Name: "fn", Usage: "call this function once and exit"},
			&cli.StringFlag{Name: "w", Usage: "target worker for -fn (default: first in config)"},
			&cli.StringFlag{Name: "args", Usage: "JSON array of arguments for -fn"},
		},
		Action: func(c *cli.Context) error {
			if c.String("fn") != "" {
				return client.RunOnceFromFile(c.Path("c"),
					c.String("w"), c.String("fn"), c.String("args"))
			}
			return startClient(c.Path("c"))
		},
	}
	app := &cli.App{
		Commands: []*cli.Command{
			cmdSimulation,
			cmdFunctional,
			cmdWorker,
			cmdIntegrationTest,
			cmdClient,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}

}

func localSimulation(n int) error {
	sl := simulation.RunLocally(n)
	defer sl.StopAll()

	sl.StartReadingCMD()
	return nil
}

func startClient(filePath string) error {
	err := client.StartClientFromFile(filePath)
	return err
}
