package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/coro/engine"
)

// Scenario is the YAML description of a test run.
type Scenario struct {
	// Hosts is the number of independent host loops running the tests.
	Hosts int `yaml:"hosts"`
	// Budget is the frame budget of every test, zero for no limit.
	Budget int      `yaml:"budget"`
	Tests  []Script `yaml:"tests"`
}

// Script is a synthetic test: it waits for a number of frames, optionally
// reporting an error or panicking along the way.
type Script struct {
	Name    string `yaml:"name"`
	Frames  int    `yaml:"frames"`
	FailAt  int    `yaml:"fail_at,omitempty"`
	Message string `yaml:"message,omitempty"`
	Panic   bool   `yaml:"panic,omitempty"`
}

const demoScenario = `
hosts: 2
budget: 120
tests:
  - name: open-menu
    frames: 12
  - name: drag-window
    frames: 40
  - name: missing-button
    frames: 20
    fail_at: 8
    message: button "OK" not found
  - name: crash
    frames: 3
    panic: true
  - name: never-ends
    frames: 1000
`

func loadScenario(path string) (*Scenario, error) {
	var b []byte
	if path == "" {
		b = []byte(demoScenario)
	} else {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	return parseScenario(b)
}

func parseScenario(b []byte) (*Scenario, error) {
	s := &Scenario{Hosts: 1}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if s.Hosts < 1 {
		return nil, fmt.Errorf("scenario needs at least one host, got %d", s.Hosts)
	}
	for i, t := range s.Tests {
		if t.Name == "" {
			return nil, fmt.Errorf("test #%d has no name", i)
		}
		if t.Frames < 0 {
			return nil, fmt.Errorf("test %s: negative frame count", t.Name)
		}
	}
	return s, nil
}

// Func returns the test function playing the script.
func (s Script) Func() engine.Func {
	return func(c *engine.Context) {
		for c.Frame() <= s.Frames {
			if c.Stopped() {
				return
			}
			if s.FailAt > 0 && c.Frame() == s.FailAt {
				msg := s.Message
				if msg == "" {
					msg = "scripted failure"
				}
				c.Errorf("%s", msg)
			}
			c.Yield()
		}
		if s.Panic {
			panic(fmt.Sprintf("%s: scripted panic", s.Name))
		}
	}
}
