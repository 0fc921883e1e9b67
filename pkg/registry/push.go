// Package registry pushes OCI layouts produced by BuildKit to a remote
// registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Credentials authenticate a single push. An empty value falls back to the
// local docker keychain.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) option() remote.Option {
	if c.Username == "" && c.Password == "" {
		return remote.WithAuthFromKeychain(authn.DefaultKeychain)
	}
	return remote.WithAuth(authn.FromConfig(authn.AuthConfig{Username: c.Username, Password: c.Password}))
}

type PushOptions struct {
	Credentials Credentials
	Output      io.Writer
	// Insecure allows plain HTTP, for local registries.
	Insecure bool
}

// PushLayout uploads the image index stored at layoutPath under reference.
func PushLayout(ctx context.Context, layoutPath, reference string, opts PushOptions) error {
	if layoutPath == "" {
		return errors.New("layout path is required")
	}
	var nameOpts []name.Option
	if opts.Insecure {
		nameOpts = append(nameOpts, name.Insecure)
	}
	ref, err := name.ParseReference(reference, nameOpts...)
	if err != nil {
		return fmt.Errorf("parse reference %s: %w", reference, err)
	}
	if opts.Output != nil {
		fmt.Fprintf(opts.Output, "Pushing %s from %s\n", reference, layoutPath)
	}
	return pushLayout(ctx, layoutPath, ref, opts.Credentials)
}

func pushLayout(ctx context.Context, layoutPath string, ref name.Reference, creds Credentials) error {
	lp, err := layout.FromPath(layoutPath)
	if err != nil {
		return fmt.Errorf("open OCI layout: %w", err)
	}
	idx, err := lp.ImageIndex()
	if err != nil {
		return fmt.Errorf("load OCI index: %w", err)
	}
	if err := remote.WriteIndex(ref, idx, remote.WithContext(ctx), creds.option()); err != nil {
		return fmt.Errorf("push %s: %w", ref.String(), err)
	}
	return nil
}
