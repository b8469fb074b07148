package tools

import (
	"flag"
)

const (
	CommandInfo      = "info"
	CommandCloud     = "cloud"
	CommandRasterize = "rasterize"
)

type FlagsGlobal struct {
	Help    *bool `json:"help"`
	Version *bool `json:"version"`
}

type CommonFlags struct {
	Input            *string `json:"input"`
	CRS              *string `json:"crs"`
	FolderProcessing *bool
	Recursive        *bool
	Silent           *bool
	LogTimestamp     *bool
}

type FlagsForCommandInfo struct {
	CommonFlags
	ShowVLRs    *bool
	ShowGeoKeys *bool
	SkipPoints  *bool
}

type FlagsForCommandCloud struct {
	CommonFlags
	Output    *string
	TargetCRS *string
	ZOffset   *float64
}

type FlagsForCommandRasterize struct {
	CommonFlags
	Output *string
	Nx     *int
	Ny     *int
	Radius *float64
	K      *int
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	version := defineBoolFlag("version", "v", false, "Displays the version of lascloud.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
	}
}

func ParseFlagsForCommandInfo(args []string) FlagsForCommandInfo {
	flagCommand := flag.NewFlagSet("command-info", flag.ExitOnError)

	out := FlagsForCommandInfo{
		CommonFlags: defineCommonFlags(flagCommand),
		ShowVLRs:    defineBoolFlagCommand(flagCommand, "vlrs", "", false, "Lists every variable length record."),
		ShowGeoKeys: defineBoolFlagCommand(flagCommand, "geokeys", "g", false, "Decodes and prints the GeoKey directory."),
		SkipPoints:  defineBoolFlagCommand(flagCommand, "skip-points", "k", false, "Reads only the header and records; point data stays untouched."),
	}

	flagCommand.Parse(args)
	return out
}

func ParseFlagsForCommandCloud(args []string) FlagsForCommandCloud {
	flagCommand := flag.NewFlagSet("command-cloud", flag.ExitOnError)

	out := FlagsForCommandCloud{
		CommonFlags: defineCommonFlags(flagCommand),
		Output:      defineStringFlagCommand(flagCommand, "output", "o", "", "Output PLY file to write the point cloud to."),
		TargetCRS:   defineStringFlagCommand(flagCommand, "target-crs", "t", "", "Target CRS (EPSG:nnnn or proj4 string) to reproject into."),
		ZOffset:     defineFloat64FlagCommand(flagCommand, "zoffset", "z", 0, "Vertical offset to apply to points, in CRS units."),
	}

	flagCommand.Parse(args)
	return out
}

func ParseFlagsForCommandRasterize(args []string) FlagsForCommandRasterize {
	flagCommand := flag.NewFlagSet("command-rasterize", flag.ExitOnError)

	out := FlagsForCommandRasterize{
		CommonFlags: defineCommonFlags(flagCommand),
		Output:      defineStringFlagCommand(flagCommand, "output", "o", "", "Output CSV file for the per cell counts."),
		Nx:          defineIntFlagCommand(flagCommand, "nx", "", 256, "Raster width in cells."),
		Ny:          defineIntFlagCommand(flagCommand, "ny", "", 256, "Raster height in cells."),
		Radius:      defineFloat64FlagCommand(flagCommand, "radius", "", 0, "Collect points within this radius of each cell center instead of by footprint."),
		K:           defineIntFlagCommand(flagCommand, "knn", "", 0, "Collect exactly this many nearest points per cell instead of by footprint."),
	}

	flagCommand.Parse(args)
	return out
}

func defineCommonFlags(flagCommand *flag.FlagSet) CommonFlags {
	return CommonFlags{
		Input:            defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the input las/laz file or folder."),
		CRS:              defineStringFlagCommand(flagCommand, "crs", "e", "", "Overrides the CRS declared by the input file (EPSG:nnnn or proj4 string)."),
		FolderProcessing: defineBoolFlagCommand(flagCommand, "folder", "f", false, "Enables processing of all las files from the input folder. Input must be a folder if specified."),
		Recursive:        defineBoolFlagCommand(flagCommand, "recursive", "r", false, "Enables recursive lookup for all files inside the subfolders."),
		Silent:           defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages."),
		LogTimestamp:     defineBoolFlagCommand(flagCommand, "timestamp", "", false, "Adds timestamp to log messages."),
	}
}

func defineBoolFlag(name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
