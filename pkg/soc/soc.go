// Package soc identifies the ASPEED BMC behind an AHB handle.
//
// Identification reads the SCU silicon revision register and matches it
// against an embedded model table. The resulting SoC carries the generation
// that clock and watchdog controllers use to pick register layouts.
package soc

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/ahb"
)

const (
	SCUBase uint32 = 0x1e6e2000

	// SCUKey unlocks SCU write access when written to SCU000. Any other value
	// locks it again.
	SCUKey uint32 = 0x1688a8a8

	scuRevG5 = SCUBase + 0x7c
	scuRevG6 = SCUBase + 0x04
)

// Generation is the ASPEED SoC family.
type Generation int

const (
	G4 Generation = 4
	G5 Generation = 5
	G6 Generation = 6
)

func (g Generation) String() string {
	return fmt.Sprintf("G%d", int(g))
}

// Model is one entry of the silicon revision table.
type Model struct {
	Name       string     `yaml:"name"`
	Revision   uint32     `yaml:"revision"`
	Generation Generation `yaml:"generation"`
}

// ErrUnknownModel is returned when the silicon revision is not in the table.
var ErrUnknownModel = errors.New("soc: unknown silicon revision")

//go:embed models.yaml
var modelsYAML []byte

var (
	modelsOnce sync.Once
	models     map[uint32]Model
	modelsErr  error
)

func loadModels() (map[uint32]Model, error) {
	modelsOnce.Do(func() {
		models, modelsErr = parseModels(modelsYAML)
	})
	return models, modelsErr
}

func parseModels(data []byte) (map[uint32]Model, error) {
	var doc struct {
		Models []Model `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse model table: %w", err)
	}
	out := make(map[uint32]Model, len(doc.Models))
	for _, m := range doc.Models {
		if m.Name == "" {
			return nil, fmt.Errorf("model table: entry 0x%08x has no name", m.Revision)
		}
		if _, dup := out[m.Revision]; dup {
			return nil, fmt.Errorf("model table: duplicate revision 0x%08x", m.Revision)
		}
		out[m.Revision] = m
	}
	return out, nil
}

// LookupRevision returns the model for a silicon revision ID.
func LookupRevision(rev uint32) (Model, bool) {
	table, err := loadModels()
	if err != nil {
		return Model{}, false
	}
	m, ok := table[rev]
	return m, ok
}

// SoC is an identified chip reachable through an AHB handle.
type SoC struct {
	ahb   ahb.AHB
	model Model
}

// Probe identifies the SoC behind a.
func Probe(a ahb.AHB) (*SoC, error) {
	if _, err := loadModels(); err != nil {
		return nil, err
	}

	for _, reg := range []uint32{scuRevG5, scuRevG6} {
		rev, err := a.Read32(reg)
		if err != nil {
			return nil, fmt.Errorf("read silicon revision: %w", err)
		}
		if m, ok := LookupRevision(rev); ok {
			return &SoC{ahb: a, model: m}, nil
		}
	}
	return nil, ErrUnknownModel
}

// AHB returns the handle the SoC was probed through.
func (s *SoC) AHB() ahb.AHB { return s.ahb }

func (s *SoC) Model() Model { return s.model }

func (s *SoC) Generation() Generation { return s.model.Generation }

func (s *SoC) String() string { return s.model.Name }

// Destroy drops the reference to the AHB handle. The handle itself remains
// owned by its bridge.
func (s *SoC) Destroy() {
	s.ahb = nil
}

// UnlockSCU enables writes to protected SCU registers.
func (s *SoC) UnlockSCU() error {
	return s.ahb.Write32(SCUBase, SCUKey)
}

// LockSCU disables writes to protected SCU registers.
func (s *SoC) LockSCU() error {
	return s.ahb.Write32(SCUBase, 0)
}
