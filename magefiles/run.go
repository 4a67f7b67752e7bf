//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds the binary and runs it with anima.toml until interrupted.
func (Run) Avatar() error {
	mg.Deps(Build.Binary)
	fmt.Println("Run avatar engine...")
	_, err := newCommand("bin/anima-avatar", "run", "--config", "anima.toml").run()
	return err
}

// Builds the binary and fetches one avatar, e.g. mage run:fetch ./avatar.glb
func (Run) Fetch(location string) error {
	mg.Deps(Build.Binary)
	_, err := newCommand("bin/anima-avatar", "fetch", location, "--config", "anima.toml").run()
	return err
}
