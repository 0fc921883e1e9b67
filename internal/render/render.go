// Package render substitutes placeholders in stack templates. Templates use
// Go template syntax with the sprig function map; any placeholder that has
// no value in the context fails the render.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// ErrRender wraps every template failure so callers can abort before provisioning.
var ErrRender = errors.New("render template")

// Context is the merged key/value set handed to a template.
type Context map[string]any

// Merge layers contexts left to right; later keys win.
func Merge(layers ...map[string]any) Context {
	out := Context{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// FromStrings lifts a string map into a context layer.
func FromStrings(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Renderer renders named templates against a fixed context.
type Renderer struct {
	ctx Context
}

func New(ctx Context) *Renderer {
	return &Renderer{ctx: ctx}
}

// Render executes body. name is only used in error messages.
func (r *Renderer) Render(name, body string) (string, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(body)
	if err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrRender, name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(r.ctx)); err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrRender, name, err)
	}
	return buf.String(), nil
}
