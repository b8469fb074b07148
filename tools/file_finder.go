package tools

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// FileFinder lists the lidar files a command should process.
type FileFinder interface {
	GetLidarFilesToProcess(input string, folderProcessing, recursive bool) []string
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

func (f *StandardFileFinder) GetLidarFilesToProcess(input string, folderProcessing, recursive bool) []string {
	// If folder processing is not enabled the input flag names a single
	// file, otherwise look for las/laz files in the input folder,
	// excluding nested folders unless recursive lookup is requested
	if !folderProcessing {
		return []string{input}
	}

	return f.getLidarFilesFromInputFolder(input, recursive)
}

func (f *StandardFileFinder) getLidarFilesFromInputFolder(input string, recursive bool) []string {
	var files = make([]string, 0)

	baseInfo, _ := os.Stat(input)
	err := filepath.Walk(
		input,
		func(path string, info os.FileInfo, err error) error {
			if info.IsDir() && !recursive && !os.SameFile(info, baseInfo) {
				return filepath.SkipDir
			}
			ext := strings.ToLower(filepath.Ext(info.Name()))
			if ext == ".las" || ext == ".laz" {
				files = append(files, path)
			}
			return nil
		},
	)

	if err != nil {
		log.Fatal(err)
	}

	return files
}
