// qamsim measures bit error rates of square QAM over an AWGN channel.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"gopkg.in/urfave/cli.v1"

	"github.com/jeongseonghan/qam-channel/internal/channel"
	"github.com/jeongseonghan/qam-channel/internal/config"
	"github.com/jeongseonghan/qam-channel/internal/experiment"
	"github.com/jeongseonghan/qam-channel/internal/modem"
	"github.com/jeongseonghan/qam-channel/internal/report"
	"github.com/jeongseonghan/qam-channel/internal/server"
)

// Sweeps with fewer simulated bits per point than this get a resolution
// warning.
const minResolvableBits = 10000

var (
	runCommand = cli.Command{
		Action:      runSweep,
		Name:        "run",
		Usage:       "Run a BER sweep and write the result file",
		Description: `Transmits the first line of the input file through every (order, Eb/N0) point and writes SNRs, -1, orders, -1 and BERs to the output file.`,
	}

	serveCommand = cli.Command{
		Action: serve,
		Name:   "serve",
		Usage:  "Start the HTTP sweep server",
	}

	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "[file]",
		Description: `The dumpconfig command shows configuration values.`,
	}

	orderFlag = cli.IntFlag{
		Name:  "order",
		Usage: "Modulation order",
		Value: int(modem.Mod16QAM),
	}
	ebn0Flag = cli.Float64Flag{
		Name:  "ebn0",
		Usage: "Eb/N0 in dB",
		Value: 10,
	}

	decodeCommand = cli.Command{
		Action:    decode,
		Name:      "decode",
		Usage:     "Send a message through one noisy link and print what arrives",
		ArgsUsage: "[message]",
		Flags:     []cli.Flag{orderFlag, ebn0Flag},
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "qamsim"
	app.Usage = "Monte-Carlo BER simulator for square QAM over AWGN"
	app.Version = "0.1.0"
	app.Flags = globalFlags
	app.Action = runSweep
	app.Commands = []cli.Command{
		runCommand,
		serveCommand,
		dumpConfigCommand,
		decodeCommand,
	}
	return app
}

func main() {
	log.SetOutput(colorable.NewColorableStderr())
	log.SetFlags(log.Ltime)

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(colorable.NewColorableStderr(), color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func logProgress(p experiment.Progress) {
	m := modem.Order(p.Order)
	log.Printf("[%d/%d] %-8s Eb/N0 %6.2f dB  BER %.4e  measured %.2f dB",
		p.Done, p.Total, m, p.SNR, p.BER, channel.EstimateEbN0(m, p.NoiseVariance))
}

func runSweep(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	msg, err := report.ReadMessageFile(cfg.IO.Input)
	if err != nil {
		return err
	}
	if msg == "" {
		return fmt.Errorf("%s: %w", cfg.IO.Input, experiment.ErrEmptyMessage)
	}
	bits := modem.StringToBits(msg)

	runner, err := experiment.NewRunner(cfg.Experiment, experiment.WithProgress(logProgress))
	if err != nil {
		return err
	}
	if n := len(bits) * cfg.Experiment.Trials; n < minResolvableBits {
		log.Print(color.YellowString("Only %d bits per point, BER below %.1e cannot be resolved", n, 1/float64(n)))
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(sigCtx, bits)
	if err != nil {
		return err
	}
	if err := report.WriteFile(cfg.IO.Output, res); err != nil {
		return err
	}

	fmt.Fprintln(ctx.App.Writer)
	report.WriteTable(ctx.App.Writer, res)
	fmt.Fprintln(ctx.App.Writer, color.GreenString("BER results written to %s", cfg.IO.Output))
	return nil
}

func serve(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveUntil(sigCtx, ctx.App.Writer, cfg)
}

// serveUntil runs the sweep server until ctx is cancelled.
func serveUntil(ctx context.Context, w io.Writer, cfg config.Config) error {
	if _, err := cfg.Experiment.Validate(); err != nil {
		return err
	}

	handlers := server.NewHandlers(cfg.Experiment)
	srv := server.NewServer(cfg.Server.Addr, handlers, cfg.Server.StaticDir)

	err := srv.Start(ctx)
	fmt.Fprintln(w, "\nShutting down...")
	return err
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	return config.Dump(dump, &cfg)
}

func decode(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	d, err := modem.ParseDecision(cfg.Experiment.Decision)
	if err != nil {
		return err
	}

	msg := strings.Join(ctx.Args(), " ")
	if msg == "" {
		if msg, err = report.ReadMessageFile(cfg.IO.Input); err != nil {
			return err
		}
	}
	if msg == "" {
		return experiment.ErrEmptyMessage
	}

	order := modem.Order(ctx.Int(orderFlag.Name))
	link, err := experiment.NewLink(order, d)
	if err != nil {
		return err
	}

	bits := modem.StringToBits(msg)
	ebn0 := ctx.Float64(ebn0Flag.Name)
	recovered, err := link.Transmit(bits, ebn0, channel.NewSource(cfg.Experiment.Seed))
	if err != nil {
		return err
	}
	ber, err := experiment.ComputeBER(bits, recovered)
	if err != nil {
		return err
	}
	text, err := modem.BitsToString(recovered)
	if err != nil {
		return err
	}

	w := ctx.App.Writer
	fmt.Fprintf(w, "%s at %g dB, decision=%s\n", order, ebn0, d)
	fmt.Fprintf(w, "sent:     %q\n", msg)
	fmt.Fprintf(w, "received: %q\n", text)
	berLine := fmt.Sprintf("BER:      %s", report.FormatValue(ber))
	if ber == 0 {
		fmt.Fprintln(w, color.GreenString("%s", berLine))
	} else {
		fmt.Fprintln(w, color.YellowString("%s", berLine))
	}
	return nil
}
