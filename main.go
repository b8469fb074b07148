package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/geodense/lascloud/internal/converters"
	"github.com/geodense/lascloud/pkg/cloud"
	"github.com/geodense/lascloud/pkg/geokey"
	"github.com/geodense/lascloud/pkg/las"
	"github.com/geodense/lascloud/tools"
)

const VERSION = "0.9.1"

func main() {
	log.SetPrefix("[lascloud] ")
	log.SetFlags(log.LUTC | log.Ldate | log.Lmicroseconds | log.Lshortfile)

	flagsGlobal := tools.ParseFlagsGlobal()

	args := flag.Args()
	if *flagsGlobal.Help || len(args) == 0 {
		showHelp()
		return
	}
	if *flagsGlobal.Version {
		printVersion()
		return
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case tools.CommandInfo:
		mainCommandInfo(args)
	case tools.CommandCloud:
		mainCommandCloud(args)
	case tools.CommandRasterize:
		mainCommandRasterize(args)
	default:
		log.Fatalf("Unrecognized command [%q]. Command must be one of [info|cloud|rasterize]", cmd)
	}
}

func setupLogging(flags tools.CommonFlags) {
	if *flags.Silent {
		tools.DisableLogger()
	}
	if *flags.LogTimestamp {
		tools.EnableLoggerTimestamp()
	}
}

func inputFiles(flags tools.CommonFlags) []string {
	if *flags.Input == "" {
		log.Fatal("Please specify an input file or folder with -input")
	}
	if _, err := os.Stat(*flags.Input); os.IsNotExist(err) {
		log.Fatal("Input file/folder not found")
	}
	finder := tools.NewStandardFileFinder()
	return finder.GetLidarFilesToProcess(*flags.Input, *flags.FolderProcessing, *flags.Recursive)
}

func mainCommandInfo(args []string) {
	flags := tools.ParseFlagsForCommandInfo(args)
	setupLogging(flags.CommonFlags)

	mode := las.ReadPointsLazy
	if *flags.SkipPoints {
		mode = las.ReadPointsSkip
	}

	for _, path := range inputFiles(flags.CommonFlags) {
		l, err := las.Open(path, las.ReadOptions{ReadPoints: mode, OverrideCRS: *flags.CRS})
		if err != nil {
			log.Fatal("Error reading ", path, ": ", err)
		}

		h := l.Header
		tools.LogOutput(path)
		tools.LogOutput(fmt.Sprintf("  LAS 1.%d, point format %d (+%d extra bytes), %d points",
			h.VersionMinor, h.Format.ID, h.Format.ExtraBytes, h.PointCount))
		tools.LogOutput(fmt.Sprintf("  system %q, software %q, created day %d of %d",
			h.SystemID, h.SoftwareID, h.CreationDay, h.CreationYear))
		tools.LogOutput(fmt.Sprintf("  bounds min %v max %v scale %v offset %v", h.Min, h.Max, h.Scale, h.Offset))
		if crs, ok := l.CRS(); ok {
			tools.LogOutput("  crs: " + crs)
		}
		for _, w := range l.Warnings() {
			tools.LogOutput("  warning: " + w.String())
		}

		if *flags.ShowVLRs {
			for _, v := range l.VLRs {
				tools.LogOutput(fmt.Sprintf("  vlr %q/%d %q (%d bytes)", v.UserID, v.RecordID, v.Description, len(v.Data)))
			}
			for _, v := range l.EVLRs {
				tools.LogOutput(fmt.Sprintf("  evlr %q/%d %q (%d bytes)", v.UserID, v.RecordID, v.Description, len(v.Data)))
			}
		}
		if *flags.ShowGeoKeys {
			keys, err := geokey.Parse(l.VLRs)
			if err != nil {
				tools.LogOutput("  geokeys: " + err.Error())
			} else {
				for _, id := range keys.Keys() {
					v, _ := keys.Get(id)
					tools.LogOutput(fmt.Sprintf("  geokey %d = %v", id, v))
				}
				if wkt, err := keys.ToWKT(); err == nil {
					tools.LogOutput("  wkt: " + wkt)
				}
			}
		}
		l.Close()
	}
}

func mainCommandCloud(args []string) {
	flags := tools.ParseFlagsForCommandCloud(args)
	setupLogging(flags.CommonFlags)

	if *flags.Output == "" {
		log.Fatal("Please specify an output file with -output")
	}

	files := inputFiles(flags.CommonFlags)
	sources := make([]*las.LAS, 0, len(files))
	for _, path := range files {
		l, err := las.Open(path, las.ReadOptions{ReadPoints: las.ReadPointsLazy, OverrideCRS: *flags.CRS})
		if err != nil {
			log.Fatal("Error reading ", path, ": ", err)
		}
		defer l.Close()
		sources = append(sources, l)
	}

	converter := converters.NewProj4CoordinateConverter()
	defer converter.Cleanup()
	corrector := converters.NewOffsetElevationCorrector(*flags.ZOffset)

	opts := cloud.BuildOptions{
		CRS:       *flags.TargetCRS,
		Converter: converter,
		Attributes: []cloud.AttrSpec{
			{Name: "red", Extract: func(_ las.PointFormat, r *las.PointRecord) interface{} { return r.Red }},
			{Name: "green", Extract: func(_ las.PointFormat, r *las.PointRecord) interface{} { return r.Green }},
			{Name: "blue", Extract: func(_ las.PointFormat, r *las.PointRecord) interface{} { return r.Blue }},
		},
	}
	pc, err := cloud.FromLASMulti(sources, opts)
	if err != nil {
		log.Fatal("Error building point cloud: ", err)
	}

	if *flags.ZOffset != 0 {
		_, _, z, err := pc.Coordinates()
		if err != nil {
			log.Fatal(err)
		}
		for i := range z {
			z[i] = corrector.CorrectElevation(0, 0, z[i])
		}
	}

	if err := tools.CreateDirectoryIfDoesNotExist(filepath.Dir(*flags.Output)); err != nil {
		log.Fatal("Error creating output folder: ", err)
	}
	if err := pc.WritePly(*flags.Output); err != nil {
		log.Fatal("Error writing ", *flags.Output, ": ", err)
	}
	tools.LogOutput("Wrote", pc.Len(), "points to", *flags.Output)
}

func mainCommandRasterize(args []string) {
	flags := tools.ParseFlagsForCommandRasterize(args)
	setupLogging(flags.CommonFlags)

	if *flags.Output == "" {
		log.Fatal("Please specify an output file with -output")
	}
	if *flags.Radius > 0 && *flags.K > 0 {
		log.Fatal("Choose at most one of -radius and -knn")
	}

	files := inputFiles(flags.CommonFlags)
	sources := make([]*las.LAS, 0, len(files))
	for _, path := range files {
		l, err := las.Open(path, las.ReadOptions{ReadPoints: las.ReadPointsLazy, OverrideCRS: *flags.CRS})
		if err != nil {
			log.Fatal("Error reading ", path, ": ", err)
		}
		defer l.Close()
		sources = append(sources, l)
	}

	pc, err := cloud.FromLASMulti(sources, cloud.BuildOptions{})
	if err != nil {
		log.Fatal("Error building point cloud: ", err)
	}

	opts := cloud.RasterOptions{Mode: cloud.ModeFootprint}
	if *flags.Radius > 0 {
		opts.Mode = cloud.ModeRadius
		opts.Radius = *flags.Radius
	}
	if *flags.K > 0 {
		opts.Mode = cloud.ModeKNN
		opts.K = *flags.K
	}

	raster, err := cloud.Rasterize(context.Background(), pc, *flags.Nx, *flags.Ny, opts)
	if err != nil {
		log.Fatal("Error rasterizing: ", err)
	}

	if err := tools.CreateDirectoryIfDoesNotExist(filepath.Dir(*flags.Output)); err != nil {
		log.Fatal("Error creating output folder: ", err)
	}
	f := tools.CreateFileOrFail(*flags.Output)
	defer f.Close()

	w := csv.NewWriter(f)
	row := make([]string, raster.Nx())
	for j := 0; j < raster.Ny(); j++ {
		for i := 0; i < raster.Nx(); i++ {
			row[i] = strconv.Itoa(raster.CellCount(i, j))
		}
		if err := w.Write(row); err != nil {
			log.Fatal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatal(err)
	}
	tools.LogOutput("Wrote", raster.Nx(), "x", raster.Ny(), "raster to", *flags.Output)
}

func showHelp() {
	fmt.Println("lascloud reads, filters and processes LAS/LAZ lidar point clouds")
	printVersion()
	fmt.Println("")
	fmt.Println("Usage: lascloud [info|cloud|rasterize] -input <file> [flags]")
	fmt.Println("")
	fmt.Println("Command line flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
