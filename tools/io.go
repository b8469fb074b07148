package tools

import (
	"os"

	"github.com/golang/glog"
)

func CreateFileOrFail(filePath string) *os.File {
	file, err := os.Create(filePath)
	if err != nil {
		glog.Fatal(err)
	}

	return file
}

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		err := os.MkdirAll(directory, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}
