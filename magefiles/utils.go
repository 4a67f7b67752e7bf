//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
)

// command is one external tool invocation. Output is streamed unless quiet is
// set and mage is not running verbose; it is always returned to the caller.
type command struct {
	name  string
	args  []string
	dir   string
	env   []string
	quiet bool
}

func newCommand(name string, args ...string) *command {
	return &command{name: name, args: args}
}

func goCmd(args ...string) *command {
	return newCommand(mg.GoCmd(), args...)
}

func (c *command) in(dir string) *command {
	c.dir = dir
	return c
}

// withEnv adds KEY=VALUE pairs on top of the current environment.
func (c *command) withEnv(kv ...string) *command {
	c.env = append(c.env, kv...)
	return c
}

func (c *command) silent() *command {
	c.quiet = true
	return c
}

func (c *command) run() (string, error) {
	fmt.Printf("Executing: %s %s\n", c.name, strings.Join(c.args, " "))
	cmd := exec.Command(c.name, c.args...)
	cmd.Dir = c.dir
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}

	stream := mg.Verbose() || !c.quiet
	var b bytes.Buffer
	if stream {
		cmd.Stdout = io.MultiWriter(&b, os.Stdout)
		cmd.Stderr = io.MultiWriter(&b, os.Stderr)
	} else {
		cmd.Stdout = &b
		cmd.Stderr = &b
	}
	if err := cmd.Run(); err != nil {
		if !stream {
			fmt.Println("... failed command output:")
			fmt.Println(b.String())
		}
		return "", fmt.Errorf("error executing %s: %w", c.name, err)
	}
	return b.String(), nil
}

// tidy resolves go.sum before anything is compiled.
func tidy() error {
	if _, err := goCmd("mod", "tidy").silent().run(); err != nil {
		return fmt.Errorf("failed to run go mod tidy: %w", err)
	}
	return nil
}
