//go:build windows

package main

import (
	"os"

	"github.com/pkg/errors"
)

func setRawIO() (func(), error) {
	return nil, errors.New("raw IO not supported")
}

func consoleSize(f *os.File) (int, int) {
	return 0, 0
}
