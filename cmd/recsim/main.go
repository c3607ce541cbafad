// Command recsim is the simulator's command-line entry point: `gen`
// expands a topology spec into a full input file, `run` executes one
// simulation and prints its aggregate metrics. Scaled down from the
// teacher's cmd/cli/cli/app.go urfave/cli shape to two subcommands and
// no long-running/refresh machinery (the teacher's cluster-management
// concerns have no analogue in a one-shot batch simulator).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/Neccolini/recsimu/cmn/cos"
	"github.com/Neccolini/recsimu/cmn/nlog"
	"github.com/Neccolini/recsimu/gen"
	"github.com/Neccolini/recsimu/logsink"
	"github.com/Neccolini/recsimu/sim"
	"github.com/Neccolini/recsimu/vidtbl"
)

var (
	fred   = color.New(color.FgHiRed).SprintFunc()
	fyellow = color.New(color.FgHiYellow).SprintFunc()
)

func main() {
	app := cli.NewApp()
	app.Name = "recsim"
	app.Usage = "reconfigurable network-on-chip cycle simulator"
	app.HideHelp = false
	app.Commands = []cli.Command{genCommand, runCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, fred(err.Error()))
		os.Exit(1)
	}
}

var genCommand = cli.Command{
	Name:      "gen",
	Usage:     "generate a configuration",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "i", Usage: "topology spec JSON (\"-\" for stdin)", Required: true},
		cli.StringFlag{Name: "o", Usage: "output config JSON (default: stdout)", Value: "-"},
	},
	Action: genAction,
}

func genAction(c *cli.Context) error {
	var spec gen.Spec
	if err := cos.ReadJSON(c.String("i"), &spec); err != nil {
		return cos.NewErrConfig("gen: reading %q: %v", c.String("i"), err)
	}
	in, err := gen.Generate(&spec)
	if err != nil {
		return err
	}
	if err := cos.WriteJSON(c.String("o"), in); err != nil {
		return cos.NewErrConfig("gen: writing %q: %v", c.String("o"), err)
	}
	return nil
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "execute a simulation",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "i", Usage: "input config JSON (\"-\" for stdin)", Required: true},
		cli.BoolFlag{Name: "verbose", Usage: "trace each cycle's start and any ack mismatches"},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	if c.Bool("verbose") {
		nlog.SetVerbose(true)
		fmt.Fprintln(os.Stderr, fyellow("verbose tracing enabled"))
	}

	var in sim.Input
	if err := cos.ReadJSON(c.String("i"), &in); err != nil {
		return cos.NewErrConfig("run: reading %q: %v", c.String("i"), err)
	}

	vt := vidtbl.Default
	log := logsink.Default

	s, err := sim.Build(&in, vt, log)
	if err != nil {
		return err
	}
	metrics, err := sim.Run(&in, s, log)
	if err != nil {
		return err
	}
	return cos.WriteJSONLine(os.Stdout, metrics)
}
