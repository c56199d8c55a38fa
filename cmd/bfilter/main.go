// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	nl "github.com/espdev/itkcvbf/internal"
	"github.com/espdev/itkcvbf/internal/config"
	"github.com/espdev/itkcvbf/internal/device"
	"github.com/espdev/itkcvbf/internal/ops"
	"github.com/espdev/itkcvbf/internal/rest"
)

const version = "0.1.0"

var defaults = config.DefaultConfig()

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var configPath = flag.String("config", config.DefaultPath, "read defaults from YAML configuration `file`, if it exists")

var in = flag.String("in", "", "read input volume from `file`, alternatively given as argument of the filter command")
var out = flag.String("out", "out.fits", "save output to `file`. Suffix .fits, .tif or .jpg selects the format")
var jpg = flag.String("jpg", defaults.Output.Preview, "save 8bit preview of the middle slice as JPEG to `file`. `%auto` replaces suffix of output file with .jpg")
var log = flag.String("log", defaults.Output.Log, "save log output to `file`. `%auto` replaces suffix of output file with .log")
var statsCSV = flag.String("stats-csv", "", "append input and output statistics to CSV `file`")
var falseColor = flag.Bool("false-color", defaults.Output.FalseColor, "color the JPEG preview with a false color ramp")

var dimension = flag.Int("dimension", defaults.Filter.Dimension, "number of axes to filter in, 2 to 4. Inputs with fewer axes are padded with unit axes")
var rangeSigma = flag.Float64("range-sigma", float64(defaults.Filter.RangeSigma), "range sigma in intensity units, <=0 selects 1")
var domainSigma = flag.Float64("domain-sigma", float64(defaults.Filter.DomainSigma), "domain sigma in pixels, <=0 selects 1")
var correction = flag.Bool("correction", defaults.Filter.Correction, "run a second correction pass over the result")
var corrRangeSigma = flag.Float64("corr-range-sigma", float64(defaults.Filter.CorrRangeSigma), "range sigma of the correction pass")
var corrDomainSigma = flag.Float64("corr-domain-sigma", float64(defaults.Filter.CorrDomainSigma), "domain sigma of the correction pass")
var cpuForce = flag.Bool("cpu-force", defaults.Filter.CPUForce, "filter on the host, even if an accelerator is available")
var workers = flag.Int("workers", defaults.Filter.Workers, "number of top level slices to filter in parallel, 0=number of CPUs")
var fallback = flag.Bool("fallback", defaults.Filter.Fallback, "retry on the host if the accelerator fails")

var addr = flag.String("addr", defaults.Server.Addr, "listen on `address` for the serve command")
var chroot = flag.String("chroot", "", "chroot to `dir` before serving")
var setuid = flag.Int("setuid", -1, "set user id before serving, -1=don't")

func main() {
	start := time.Now()
	logWriter := nl.LogWriter()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `bfilter Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (filter|serve|device|config|legal|version) [in.fits]

Commands:
  filter  Apply the edge preserving bilateral filter to the input volume
  serve   Serve the REST API
  device  Show the host features and accelerators
  config  Save the effective configuration to the -config file
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		nl.LogFatalf("Error loading configuration: %s\n", err.Error())
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}

	args := flag.Args()
	if len(args) == 0 && *in != "" {
		args = []string{"filter"}
	}
	if len(args) < 1 {
		flag.Usage()
		return
	}
	cmd := args[0]

	// Initialize logging to file in addition to stdout, if selected
	if cmd == "filter" {
		cfg.Output.Log = autoName(cfg.Output.Log, *out, ".log")
		cfg.Output.Preview = autoName(cfg.Output.Preview, *out, ".jpg")
		if cfg.Output.Log != "" {
			if err := nl.LogAlsoToFile(cfg.Output.Log); err != nil {
				nl.LogFatalf("Unable to open logfile '%s'\n", cfg.Output.Log)
			}
		}
	}
	defer nl.LogSync()

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	switch cmd {
	case "filter":
		inputs := args[1:]
		if *in != "" {
			inputs = append(inputs, *in)
		}
		if len(inputs) != 1 {
			nl.LogPrintf("Filter requires exactly one input file, got %d\n\n", len(inputs))
			flag.Usage()
			os.Exit(1)
		}
		err = cmdFilter(inputs[0], cfg)

	case "serve":
		if err = rest.MakeSandbox(*chroot, *setuid); err == nil {
			err = rest.Serve(cfg.Server.Addr)
		}

	case "device":
		cmdDevice()

	case "config":
		if err = config.SaveConfig(cfg, *configPath); err == nil {
			var m []byte
			if m, err = yaml.Marshal(cfg); err == nil {
				fmt.Fprintf(logWriter, "Saved configuration to %s:\n%s", *configPath, string(m))
			}
		}

	case "legal":
		cmdLegal()

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if cmd == "filter" {
		fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start).Round(time.Millisecond))
	}

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}
}

// Overrides configuration entries with the flags set on the command line
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		p := &cfg.Filter.Params
		switch f.Name {
		case "jpg":
			cfg.Output.Preview = *jpg
		case "log":
			cfg.Output.Log = *log
		case "false-color":
			cfg.Output.FalseColor = *falseColor
		case "dimension":
			cfg.Filter.Dimension = *dimension
		case "range-sigma":
			p.RangeSigma = float32(*rangeSigma)
		case "domain-sigma":
			p.DomainSigma = float32(*domainSigma)
		case "correction":
			p.Correction = *correction
		case "corr-range-sigma":
			p.CorrRangeSigma = float32(*corrRangeSigma)
		case "corr-domain-sigma":
			p.CorrDomainSigma = float32(*corrDomainSigma)
		case "cpu-force":
			p.CPUForce = *cpuForce
		case "workers":
			p.Workers = *workers
		case "fallback":
			p.Fallback = *fallback
		case "addr":
			cfg.Server.Addr = *addr
		}
	})
	if cfg.Filter.Workers <= 0 {
		cfg.Filter.Workers = runtime.GOMAXPROCS(0)
	}
}

// Replaces %auto with the output file name, with its suffix replaced by the given one
func autoName(name, out, suffix string) string {
	if name != "%auto" {
		return name
	}
	if out == "" {
		return ""
	}
	return strings.TrimSuffix(out, filepath.Ext(out)) + suffix
}

// Filters a single input file into the output file, with statistics and an optional preview
func cmdFilter(in string, cfg *config.Config) error {
	logWriter := nl.LogWriter()
	statsIn, statsOut := ops.NewOpStats("input"), ops.NewOpStats("output")
	statsIn.CSVFile, statsOut.CSVFile = *statsCSV, *statsCSV
	seq := ops.NewOpSequence(
		ops.NewOpLoad(0, in),
		statsIn,
		ops.NewOpBilateral(cfg.Filter.Dimension, cfg.Params()),
		statsOut,
		ops.NewOpSave(*out),
	)
	if cfg.Output.Preview != "" {
		seq.Append(ops.NewOpPreview(cfg.Output.Preview, cfg.Output.FalseColor))
	}
	m, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Filtering with these settings:\n%s\n", string(m))

	c := ops.NewContext(logWriter)
	c.Progress = newProgressBar(os.Stderr, 50)
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

// Prints host features and the usable accelerators
func cmdDevice() {
	logWriter := nl.LogWriter()
	fmt.Fprintf(logWriter, "Host: %v\n", device.HostFeatures())
	if device.Disabled() {
		fmt.Fprintf(logWriter, "Accelerators disabled by %s\n", device.EnvNoAccel)
		return
	}
	devs := device.Devices()
	fmt.Fprintf(logWriter, "%d accelerator(s)\n", len(devs))
	for i, d := range devs {
		fmt.Fprintf(logWriter, "  %d: %s\n", i, d.Name())
	}
}
