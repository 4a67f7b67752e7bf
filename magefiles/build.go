//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Tidies the module and builds a static anima-avatar binary into bin/.
func (Build) Binary() error {
	if err := tidy(); err != nil {
		return err
	}
	// the sqlite driver is pure Go, so cgo is not needed
	_, err := goCmd("build", "-trimpath", "-o", "bin/anima-avatar", ".").withEnv("CGO_ENABLED=0").run()
	return err
}
