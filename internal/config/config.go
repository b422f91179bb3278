// Package config loads the simulator's TOML configuration file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/naoina/toml"

	"github.com/jeongseonghan/qam-channel/internal/experiment"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// IOConfig names the message input and BER output files.
type IOConfig struct {
	Input  string
	Output string
}

// ServerConfig configures the HTTP sweep server.
type ServerConfig struct {
	Addr      string
	StaticDir string `toml:",omitempty"`
}

// Config is the top-level configuration file layout.
type Config struct {
	Experiment experiment.Config
	IO         IOConfig
	Server     ServerConfig
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Experiment: experiment.DefaultConfig(),
		IO: IOConfig{
			Input:  "./Data.txt",
			Output: "./BERdata.csv",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Decode reads TOML from r into cfg. Keys absent from the input keep
// their current values.
func Decode(r io.Reader, cfg *Config) error {
	return tomlSettings.NewDecoder(bufio.NewReader(r)).Decode(cfg)
}

// Load reads the TOML file at path into cfg.
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = Decode(f, cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// Dump writes cfg to w as TOML.
func Dump(w io.Writer, cfg *Config) error {
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
