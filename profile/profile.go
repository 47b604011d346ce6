// Package profile loads an optional hotness profile that overrides the
// fast-table builder's default ascending-field-number tie-break: the
// default stays ascending-field-number, and a profile only changes the
// outcome for messages and fields it names.
package profile

import (
	"os"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/upb-gen/protoc-gen-upb/fasttable"
)

// Profile is a loaded hotness profile: per-message, per-field relative
// call frequency, keyed the way the YAML file groups it.
type Profile struct {
	Messages map[string]MessageProfile `yaml:"messages"`
}

// MessageProfile is one message's field frequency table, keyed by
// field number.
type MessageProfile struct {
	Fields map[int32]float64 `yaml:"fields"`
}

// Load reads a YAML hotness profile from path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "profile: read")
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "profile: parse")
	}
	return &p, nil
}

// weightOf returns the recorded frequency for messageFullName's
// fieldNumber, or 0 if the profile carries no entry for it.
func (p *Profile) weightOf(messageFullName string, fieldNumber int32) float64 {
	if p == nil {
		return 0
	}
	mp, ok := p.Messages[messageFullName]
	if !ok {
		return 0
	}
	return mp.Fields[fieldNumber]
}

// Hotness builds a fasttable.HotnessLess comparator for one message:
// required fields still always sort first; among non-required fields, a
// higher recorded weight sorts earlier, and fields the profile is silent on
// fall back to ascending field number.
func (p *Profile) Hotness(messageFullName string) fasttable.HotnessLess {
	return func(aRequired, bRequired bool, aNumber, bNumber int32) bool {
		if aRequired != bRequired {
			return aRequired
		}
		aw := p.weightOf(messageFullName, aNumber)
		bw := p.weightOf(messageFullName, bNumber)
		if aw != bw {
			return aw > bw
		}
		return aNumber < bNumber
	}
}
