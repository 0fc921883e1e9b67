// Package templates lists the stack template directory and turns each file
// into a rendered Descriptor.
package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

// ErrBadFilename is returned for a template whose name does not follow
// "<order>_<name>.yml.j2".
var ErrBadFilename = errors.New("template filename does not match <order>_<name>.yml.j2")

var filenamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.yml\.(?:j2|tmpl)$`)

// Renderer is the templating collaborator.
type Renderer interface {
	Render(name, body string) (string, error)
}

// Collector loads every template under Dir.
type Collector struct {
	Dir string
	// Prefix is prepended to the captured name segment.
	Prefix string
	// Marker classifies a stack as application tier when its logical name
	// (without Prefix) contains it.
	Marker   string
	Renderer Renderer
	Log      logr.Logger
}

// ParseFilename splits a template filename into its ordering key and logical
// stack name.
func ParseFilename(name string) (int, string, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", fmt.Errorf("%w: %s", ErrBadFilename, name)
	}
	order, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s", ErrBadFilename, name)
	}
	return order, m[2], nil
}

// Collect renders every template and returns one descriptor per file in the
// requested direction. The first bad filename or render failure aborts.
func (c Collector) Collect(dir Direction) ([]Descriptor, error) {
	if c.Renderer == nil {
		return nil, errors.New("templates: renderer is required")
	}
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		order, logical, err := ParseFilename(name)
		if err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(filepath.Join(c.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		c.Log.V(1).Info("rendering template", "file", name)
		body, err := c.Renderer.Render(name, string(raw))
		if err != nil {
			return nil, err
		}
		stackName := c.Prefix + logical
		out = append(out, Descriptor{
			StackName: stackName,
			Body:      body,
			Filename:  name,
			Tier:      tierFor(logical, c.Marker),
			Order:     order,
		})
	}
	Sort(out, dir)
	return out, nil
}
