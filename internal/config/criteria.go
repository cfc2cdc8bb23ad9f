package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/windwatch/internal/domain"
)

// Criteria groups every tunable threshold of the analysis engine. It is the
// shape of CRITERIA_FILE.
type Criteria struct {
	Alarm        domain.AlarmCriteria        `yaml:"alarm"`
	Katabatic    domain.KatabaticCriteria    `yaml:"katabatic"`
	Lock         domain.LockSchedule         `yaml:"lock"`
	Transmission domain.TransmissionAnalyzer `yaml:"transmission"`
}

// DefaultCriteria returns the built-in criteria.
func DefaultCriteria() Criteria {
	return Criteria{
		Alarm:        domain.DefaultAlarmCriteria(),
		Katabatic:    domain.DefaultKatabaticCriteria(),
		Lock:         domain.DefaultLockSchedule(),
		Transmission: domain.NewTransmissionAnalyzer(domain.DefaultGapThreshold),
	}
}

// Validate checks every section and reports all violations together.
func (c Criteria) Validate() error {
	return errors.Join(
		c.Alarm.Validate(),
		c.Katabatic.Validate(),
		c.Lock.Validate(),
		c.Transmission.Validate(),
	)
}

// LoadCriteria decodes a YAML criteria file over the defaults. An empty path
// returns the defaults. Unknown keys are rejected so typos do not silently
// fall back to a default.
func LoadCriteria(path string) (Criteria, error) {
	if path == "" {
		return DefaultCriteria(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Criteria{}, fmt.Errorf("read criteria: %w", err)
	}
	return ParseCriteria(data)
}

// ParseCriteria decodes YAML criteria over the defaults and validates them.
func ParseCriteria(data []byte) (Criteria, error) {
	c := DefaultCriteria()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Criteria{}, fmt.Errorf("decode criteria: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Criteria{}, fmt.Errorf("invalid criteria: %w", err)
	}
	return c, nil
}
