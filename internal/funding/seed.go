package funding

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

//go:embed seed/demo.yaml
var seedFS embed.FS

// SeedCall is one entry of a seed file. DeadlineInDays is used when Deadline
// is not set, so demo content can stay relative to the load time.
type SeedCall struct {
	models.CreateInput `yaml:",inline"`
	DeadlineInDays     int `yaml:"deadline_in_days,omitempty"`
}

type SeedFile struct {
	Calls []SeedCall `yaml:"calls"`
}

// Inputs resolves relative deadlines against now.
func (f *SeedFile) Inputs(now time.Time) []models.CreateInput {
	out := make([]models.CreateInput, 0, len(f.Calls))
	for _, c := range f.Calls {
		in := c.CreateInput
		if in.Deadline.IsZero() && c.DeadlineInDays != 0 {
			in.Deadline = now.AddDate(0, 0, c.DeadlineInDays)
		}
		out = append(out, in)
	}
	return out
}

// DemoSeed returns the embedded demo content.
func DemoSeed() (*SeedFile, error) {
	data, err := seedFS.ReadFile("seed/demo.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded seed: %w", err)
	}
	return parseSeed(data)
}

// LoadSeed reads a seed file from disk. Environment variables in the file are
// expanded (e.g. ${ORG_NAME}).
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSeed([]byte(os.ExpandEnv(string(data))))
}

func parseSeed(data []byte) (*SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}
