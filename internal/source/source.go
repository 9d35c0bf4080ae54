package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned when the input location does not exist.
var ErrNotFound = errors.New("input not found")

// Input is one counter export to process.
type Input struct {
	Name     string // base name, used in log lines
	Location string // full path or object URI
	load     func(ctx context.Context) ([]byte, error)
}

// Load reads the whole input into memory.
func (in Input) Load(ctx context.Context) ([]byte, error) {
	if in.load == nil {
		return nil, fmt.Errorf("input %s has no loader", in.Name)
	}
	return in.load(ctx)
}

// NewInput builds an Input backed by a custom loader.
func NewInput(name, location string, load func(ctx context.Context) ([]byte, error)) Input {
	return Input{Name: name, Location: location, load: load}
}

// Source enumerates the inputs of one run.
type Source interface {
	// List returns inputs in processing order.
	List(ctx context.Context) ([]Input, error)

	Close() error
}

// Open returns a source for location. A plain path is read from the local
// filesystem; s3://, gs:// and mem:// URLs are read through gocloud.dev.
func Open(ctx context.Context, location string) (Source, error) {
	if isBucketURL(location) {
		return openBucketSource(ctx, location)
	}
	return NewLocalSource(location)
}

// IsCSV reports whether name has a .csv extension, case-insensitively.
func IsCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

func isBucketURL(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "s3", "gs", "mem":
		return true
	}
	return false
}
