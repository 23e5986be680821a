package quota

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the on-disk policy format.
type document struct {
	Features map[FeatureKind]Policy `yaml:"features"`
}

// ParseYAML decodes a policy document. Unknown keys are rejected.
func ParseYAML(r io.Reader) (map[FeatureKind]Policy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
		}
		return nil, errors.Join(ErrMalformedDocument, err)
	}
	if len(doc.Features) == 0 {
		return nil, fmt.Errorf("%w: no features defined", ErrMalformedDocument)
	}
	return doc.Features, nil
}

type yamlSource struct {
	data []byte
}

// NewYAMLSource returns a Source that parses the given YAML bytes.
func NewYAMLSource(data []byte) Source {
	return &yamlSource{data: bytes.Clone(data)}
}

func (s *yamlSource) Load(_ context.Context) (map[FeatureKind]Policy, error) {
	return ParseYAML(bytes.NewReader(s.data))
}

type fileSource struct {
	path string
}

// NewFileSource returns a Source that reads a YAML policy document from disk on Load.
func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

func (s *fileSource) Load(_ context.Context) (map[FeatureKind]Policy, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, s.path)
		}
		return nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	return ParseYAML(f)
}
