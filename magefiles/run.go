//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds and runs the castle scene headless for 600 frames.
func (Run) Castle() error {
	mg.Deps(Build.Castle)
	fmt.Println("Run castle...")
	if _, err := executeCmd("bin/castle", withArgs("-frames", "600"), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds and runs the castle scene with a window and the vulkan backend.
func (Run) Interactive() error {
	mg.Deps(Build.Castle)
	if _, err := executeCmd("bin/castle", withArgs("-window", "-backend", "vulkan"), withStream()); err != nil {
		return err
	}
	return nil
}

type Test mg.Namespace

// Runs the unit tests, skipping the ones that need a vulkan device.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "-short", "./..."), withStream())
	return err
}

// Runs all tests with the race detector.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}
