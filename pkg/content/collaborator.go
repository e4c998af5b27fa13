package content

import (
	"context"
	"errors"
)

// Scaffolder creates a new post directory with its initial index document.
// What it writes is opaque to the workspace; a non-nil error means the
// scaffold failed and its text is shown to the caller as-is.
type Scaffolder interface {
	Scaffold(ctx context.Context, name string) error
}

// ScaffolderFunc adapts a plain function to Scaffolder.
type ScaffolderFunc func(ctx context.Context, name string) error

func (f ScaffolderFunc) Scaffold(ctx context.Context, name string) error {
	return f(ctx, name)
}

// Deployer publishes the content repository with the given commit message.
type Deployer interface {
	Deploy(ctx context.Context, message string) error
}

// DeployerFunc adapts a plain function to Deployer.
type DeployerFunc func(ctx context.Context, message string) error

func (f DeployerFunc) Deploy(ctx context.Context, message string) error {
	return f(ctx, message)
}

// diagnostic extracts the text surfaced to callers from a collaborator error.
// Errors carrying captured process output expose it through Output.
func diagnostic(err error) string {
	type outputter interface {
		Output() string
	}
	var o outputter
	if errors.As(err, &o) {
		if out := o.Output(); out != "" {
			return out
		}
	}
	return err.Error()
}
