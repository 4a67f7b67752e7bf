//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every unit test with the race detector.
func (Test) Unit() error {
	if err := tidy(); err != nil {
		return err
	}
	_, err := goCmd("test", "-race", "-count=1", "./...").run()
	return err
}

// Runs the unit tests of a single package directory, e.g. engine/systems.
func (Test) Package(dir string) error {
	_, err := goCmd("test", "-race", "-count=1", ".").in(dir).run()
	return err
}
