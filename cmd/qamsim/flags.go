package main

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"github.com/jeongseonghan/qam-channel/internal/config"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	inputFlag = cli.StringFlag{
		Name:  "input",
		Usage: "Message file, first line is transmitted (default ./Data.txt)",
	}
	outputFlag = cli.StringFlag{
		Name:  "output",
		Usage: "BER result file (default ./BERdata.csv)",
	}
	snrFlag = cli.StringFlag{
		Name:  "snr",
		Usage: "Comma separated Eb/N0 values in dB, e.g. -2,0,2.5",
	}
	ordersFlag = cli.StringFlag{
		Name:  "orders",
		Usage: "Comma separated modulation orders, e.g. 4,16,64",
	}
	trialsFlag = cli.IntFlag{
		Name:  "trials",
		Usage: "Trials averaged per sweep point",
	}
	workersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "Sweep points simulated concurrently (0 = number of CPUs)",
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "Base noise seed (0 = seed from the clock)",
	}
	decisionFlag = cli.StringFlag{
		Name:  "decision",
		Usage: "Symbol decision policy: nearest or grid",
	}
	addrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "HTTP listen address for serve",
	}
	staticFlag = cli.StringFlag{
		Name:  "static",
		Usage: "Directory of static web files served by serve",
	}

	globalFlags = []cli.Flag{
		configFileFlag,
		inputFlag,
		outputFlag,
		snrFlag,
		ordersFlag,
		trialsFlag,
		workersFlag,
		seedFlag,
		decisionFlag,
		addrFlag,
		staticFlag,
	}
)

func parseFloatList(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q", s)
	}
	return out, nil
}

func parseIntList(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", f)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q", s)
	}
	return out, nil
}

// makeConfig loads defaults, then the config file, then flags.
func makeConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Defaults()

	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := config.Load(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyFlags(ctx, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFlags(ctx *cli.Context, cfg *config.Config) error {
	if ctx.GlobalIsSet(inputFlag.Name) {
		cfg.IO.Input = ctx.GlobalString(inputFlag.Name)
	}
	if ctx.GlobalIsSet(outputFlag.Name) {
		cfg.IO.Output = ctx.GlobalString(outputFlag.Name)
	}
	if ctx.GlobalIsSet(snrFlag.Name) {
		snr, err := parseFloatList(ctx.GlobalString(snrFlag.Name))
		if err != nil {
			return fmt.Errorf("--%s: %v", snrFlag.Name, err)
		}
		cfg.Experiment.SNR = snr
	}
	if ctx.GlobalIsSet(ordersFlag.Name) {
		orders, err := parseIntList(ctx.GlobalString(ordersFlag.Name))
		if err != nil {
			return fmt.Errorf("--%s: %v", ordersFlag.Name, err)
		}
		cfg.Experiment.Orders = orders
	}
	if ctx.GlobalIsSet(trialsFlag.Name) {
		cfg.Experiment.Trials = ctx.GlobalInt(trialsFlag.Name)
	}
	if ctx.GlobalIsSet(workersFlag.Name) {
		cfg.Experiment.Workers = ctx.GlobalInt(workersFlag.Name)
	}
	if ctx.GlobalIsSet(seedFlag.Name) {
		cfg.Experiment.Seed = ctx.GlobalInt64(seedFlag.Name)
	}
	if ctx.GlobalIsSet(decisionFlag.Name) {
		cfg.Experiment.Decision = ctx.GlobalString(decisionFlag.Name)
	}
	if ctx.GlobalIsSet(addrFlag.Name) {
		cfg.Server.Addr = ctx.GlobalString(addrFlag.Name)
	}
	if ctx.GlobalIsSet(staticFlag.Name) {
		cfg.Server.StaticDir = ctx.GlobalString(staticFlag.Name)
	}
	return nil
}
