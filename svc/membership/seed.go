package membership

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type planFile struct {
	Plans []*Plan `yaml:"plans"`
}

// LoadPlansYAML decodes a plan seed document:
//
//	plans:
//	  - id: annual
//	    short_name: Annual
//	    enabled: true
//	    expire_end_of_month: true
//	    fees:
//	      fixed: {new: 5000, renew: 4500}
//
// Every plan is validated.
func LoadPlansYAML(r io.Reader) ([]*Plan, error) {
	var f planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode plan seed: %w", err)
	}

	seen := make(map[string]bool, len(f.Plans))
	for i, p := range f.Plans {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("plan #%d (%s): %w", i, p.ID, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("plan #%d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
	}
	return f.Plans, nil
}

// LoadPlansFile reads a YAML plan seed from disk.
func LoadPlansFile(path string) ([]*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan seed: %w", err)
	}
	defer f.Close()
	return LoadPlansYAML(f)
}
