package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongseonghan/qam-channel/internal/channel"
	"github.com/jeongseonghan/qam-channel/internal/config"
	"github.com/jeongseonghan/qam-channel/internal/experiment"
	"github.com/jeongseonghan/qam-channel/internal/report"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"qamsim"}, args...))
	return out.String(), err
}

func writeMessage(t *testing.T, dir, msg string) string {
	t.Helper()
	path := filepath.Join(dir, "Data.txt")
	require.NoError(t, os.WriteFile(path, []byte(msg+"\n"), 0o644))
	return path
}

func TestParseFloatList(t *testing.T) {
	got, err := parseFloatList("-2, 0,2.5,,10")
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 0, 2.5, 10}, got)

	_, err = parseFloatList("1,x")
	assert.Error(t, err)
	_, err = parseFloatList(" , ")
	assert.Error(t, err)
}

func TestParseIntList(t *testing.T) {
	got, err := parseIntList("4,16, 64")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 16, 64}, got)

	_, err = parseIntList("4,16.5")
	assert.Error(t, err)
	_, err = parseIntList("")
	assert.Error(t, err)
}

func TestRun_WritesResultFile(t *testing.T) {
	dir := t.TempDir()
	in := writeMessage(t, dir, "A")
	out := filepath.Join(dir, "BERdata.csv")

	stdout, err := runApp(t,
		"--input", in, "--output", out,
		"--snr", "20", "--orders", "4", "--trials", "1", "--seed", "1",
		"run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "QPSK")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "20\n-1\n4\n-1\n0\n", string(data))
}

func TestRun_DefaultActionSweepsConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := writeMessage(t, dir, "Hello, QAM!")
	out := filepath.Join(dir, "result.csv")

	cfgPath := filepath.Join(dir, "qamsim.toml")
	cfgText := "[Experiment]\nSNR = [0.0, 30.0]\nOrders = [4, 16]\nTrials = 3\nSeed = 11\n\n[IO]\nInput = \"" + in + "\"\nOutput = \"" + out + "\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgText), 0o644))

	_, err := runApp(t, "--config", cfgPath)
	require.NoError(t, err)

	res, err := report.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 30}, res.SNR)
	assert.Equal(t, []int{4, 16}, res.Orders)
	for i := range res.Orders {
		assert.Zero(t, res.BER[i][1], "order %d at 30 dB", res.Orders[i])
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := runApp(t, "--input", filepath.Join(dir, "missing.txt"), "run")
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = runApp(t, "--input", empty, "run")
	assert.ErrorIs(t, err, experiment.ErrEmptyMessage)

	in := writeMessage(t, dir, "x")
	_, err = runApp(t, "--input", in, "--orders", "4,8", "run")
	assert.ErrorIs(t, err, experiment.ErrInvalidConfig)

	_, err = runApp(t, "--input", in, "--snr", "a,b", "run")
	assert.Error(t, err)
}

func TestDumpConfig(t *testing.T) {
	stdout, err := runApp(t, "--trials", "7", "--decision", "grid", "dumpconfig")
	require.NoError(t, err)

	cfg := config.Defaults()
	require.NoError(t, config.Decode(strings.NewReader(stdout), &cfg))
	assert.Equal(t, 7, cfg.Experiment.Trials)
	assert.Equal(t, "grid", cfg.Experiment.Decision)

	path := filepath.Join(t.TempDir(), "dump.toml")
	_, err = runApp(t, "--seed", "3", "dumpconfig", path)
	require.NoError(t, err)

	cfg = config.Defaults()
	require.NoError(t, config.Load(path, &cfg))
	assert.Equal(t, int64(3), cfg.Experiment.Seed)
}

func TestDecode(t *testing.T) {
	stdout, err := runApp(t, "--seed", "1", "decode", "--order", "64", "--ebn0", "40", "Hello", "QAM")
	require.NoError(t, err)
	assert.Contains(t, stdout, "64-QAM at 40 dB")
	assert.Contains(t, stdout, `received: "Hello QAM"`)
	assert.Contains(t, stdout, "BER:      0")

	_, err = runApp(t, "decode", "--order", "32", "x")
	assert.Error(t, err)
}

func TestDecode_RejectsNonFiniteEbN0(t *testing.T) {
	for _, v := range []string{"NaN", "-Inf", "+Inf"} {
		stdout, err := runApp(t, "--seed", "1", "decode", "--ebn0="+v, "Hello")
		assert.ErrorIs(t, err, channel.ErrInvalidSNR, v)
		assert.NotContains(t, stdout, "BER:")
	}
}

func TestServeUntil_StopsOnCancel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	var out bytes.Buffer
	require.NoError(t, serveUntil(ctx, &out, cfg))
	assert.Contains(t, out.String(), "Shutting down...")
}

func TestServeUntil_RejectsBadConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Experiment.Trials = 0

	var out bytes.Buffer
	err := serveUntil(context.Background(), &out, cfg)
	assert.ErrorIs(t, err, experiment.ErrInvalidConfig)
	assert.Empty(t, out.String())
}
