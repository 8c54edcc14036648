// Package policy loads the per-project auto-publish and review policy.
//
// A policy file looks like:
//
//	project: docs-platform
//	auto_publish:
//	  adr: immediate
//	  user_guide: manual
//	min_reviewers:
//	  technical_spec: 2
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"doclife/internal/doc"
)

// File is the on-disk shape of a policy.
type File struct {
	Project      string            `yaml:"project"`
	AutoPublish  map[string]string `yaml:"auto_publish,omitempty"`
	MinReviewers map[string]int    `yaml:"min_reviewers,omitempty"`
}

// Load decodes and validates a policy. Unknown keys are rejected. Empty input
// yields the zero policy.
func Load(r io.Reader) (doc.Policy, error) {
	var f File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return doc.Policy{}, fmt.Errorf("decoding policy: %w", err)
	}
	return f.Policy()
}

// LoadFile reads the policy at path. A missing file yields the zero policy.
func LoadFile(path string) (doc.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc.Policy{}, nil
		}
		return doc.Policy{}, fmt.Errorf("reading policy file: %w", err)
	}
	p, err := Load(bytes.NewReader(data))
	if err != nil {
		return doc.Policy{}, fmt.Errorf("loading policy from %s: %w", path, err)
	}
	return p, nil
}

// Policy converts the file into a validated doc.Policy.
func (f File) Policy() (doc.Policy, error) {
	p := doc.Policy{Project: f.Project}
	if len(f.AutoPublish) > 0 {
		p.AutoPublish = make(map[doc.DocumentType]doc.OverrideMode, len(f.AutoPublish))
		for t, m := range f.AutoPublish {
			p.AutoPublish[doc.DocumentType(t)] = doc.OverrideMode(m)
		}
	}
	if len(f.MinReviewers) > 0 {
		p.MinReviewers = make(map[doc.DocumentType]int, len(f.MinReviewers))
		for t, n := range f.MinReviewers {
			p.MinReviewers[doc.DocumentType(t)] = n
		}
	}
	if err := p.Validate(); err != nil {
		return doc.Policy{}, err
	}
	return p, nil
}

// Write encodes p as YAML.
func Write(w io.Writer, p doc.Policy) error {
	f := File{Project: p.Project}
	if len(p.AutoPublish) > 0 {
		f.AutoPublish = make(map[string]string, len(p.AutoPublish))
		for t, m := range p.AutoPublish {
			f.AutoPublish[string(t)] = string(m)
		}
	}
	if len(p.MinReviewers) > 0 {
		f.MinReviewers = make(map[string]int, len(p.MinReviewers))
		for t, n := range p.MinReviewers {
			f.MinReviewers[string(t)] = n
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding policy: %w", err)
	}
	return enc.Close()
}
