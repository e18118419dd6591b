package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/knxcheck/knxcheck-go/internal/functest/sim"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
	"github.com/knxcheck/knxcheck-go/pkg/model"
)

// ParseModels parses every model document in data.
func ParseModels(data []byte) ([]*model.FunctionalModel, error) {
	var models []*model.FunctionalModel

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc ModelDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
		}

		m, err := doc.Build()
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}

	if len(models) == 0 {
		return nil, &LoadError{Message: "no functional model found"}
	}
	return models, nil
}

// Build converts the document into a functional model. Values are stored
// as authoring entries and refreshed into live values. Range and
// cardinality problems are not rejected here; the engine reports them.
func (doc ModelDoc) Build() (*model.FunctionalModel, error) {
	if doc.Name == "" {
		return nil, &LoadError{Message: "model name is required"}
	}
	if len(doc.Elements) == 0 {
		return nil, &LoadError{Message: fmt.Sprintf("model %q has no elements", doc.Name)}
	}

	m := &model.FunctionalModel{Name: doc.Name}
	for i, el := range doc.Elements {
		if el.Command.Type <= 0 {
			return nil, &LoadError{Message: fmt.Sprintf("model %q element %d: command type is required", doc.Name, i)}
		}
		te := &model.TestedElement{Command: el.Command.build()}
		for _, fb := range el.Feedbacks {
			te.Feedbacks = append(te.Feedbacks, fb.build())
		}
		m.Elements = append(m.Elements, te)
	}
	return m, nil
}

func (d DatapointDoc) build() *dpt.DPT {
	entries := make([]dpt.Entry, len(d.Values))
	for i, v := range d.Values {
		entries[i] = dpt.EntryOf(v.Value)
	}
	return dpt.FromEntries(dpt.Code(d.Type), strings.TrimSpace(d.Address), entries)
}

// LoadModels loads the models of one file.
func LoadModels(path string) ([]*model.FunctionalModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	models, err := ParseModels(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return models, nil
}

// LoadPath loads a file or, for a directory, every .yaml/.yml file in it
// in name order.
func LoadPath(path string) ([]*model.FunctionalModel, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to stat", Cause: err}
	}
	if !info.IsDir() {
		return LoadModels(path)
	}
	return LoadDirectory(path)
}

// LoadDirectory loads all models from a directory.
// Only files with .yaml or .yml extensions are loaded.
func LoadDirectory(dir string) ([]*model.FunctionalModel, error) {
	var models []*model.FunctionalModel

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{
			File:    dir,
			Message: "failed to read directory",
			Cause:   err,
		}
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		ms, err := LoadModels(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		models = append(models, ms...)
	}
	return models, nil
}

// LoadLibrary loads models from path into lib, skipping models that are
// structurally equal to one already present. It returns the stored models
// in load order and the number of duplicates skipped.
func LoadLibrary(lib *model.Library, path string) ([]*model.FunctionalModel, int, error) {
	models, err := LoadPath(path)
	if err != nil {
		return nil, 0, err
	}

	var stored []*model.FunctionalModel
	dups := 0
	for _, m := range models {
		s, added := lib.Add(m)
		if !added {
			dups++
			continue
		}
		stored = append(stored, s)
	}
	return stored, dups, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// ParseInstallation parses a simulated installation.
func ParseInstallation(data []byte) (*InstallationDoc, error) {
	var doc InstallationDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if _, err := doc.devices(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadInstallation loads a simulated installation file.
func LoadInstallation(path string) (*InstallationDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	doc, err := ParseInstallation(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return doc, nil
}

// Build creates the installation. cfg.ReadDelay is overridden when the
// document sets one.
func (doc *InstallationDoc) Build(cfg sim.Config) (*sim.Installation, error) {
	devices, err := doc.devices()
	if err != nil {
		return nil, err
	}
	if doc.ReadDelay > 0 {
		cfg.ReadDelay = time.Duration(doc.ReadDelay)
	}
	return sim.New(cfg, devices...), nil
}

func (doc *InstallationDoc) devices() ([]*sim.Device, error) {
	var devices []*sim.Device
	for i, dd := range doc.Devices {
		d := &sim.Device{Name: dd.Name}
		if d.Name == "" {
			d.Name = fmt.Sprintf("device %d", i)
		}
		if dd.Address != "" {
			ia, err := knx.ParseIndividualAddress(dd.Address)
			if err != nil {
				return nil, &LoadError{Message: d.Name, Cause: err}
			}
			d.Address = ia
		}
		for j, rd := range dd.Reactions {
			r, err := rd.build()
			if err != nil {
				return nil, &LoadError{Message: fmt.Sprintf("%s reaction %d", d.Name, j), Cause: err}
			}
			d.Reactions = append(d.Reactions, r)
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (rd ReactionDoc) build() (sim.Reaction, error) {
	trigger, err := knx.ParseGroupAddress(rd.Trigger)
	if err != nil {
		return sim.Reaction{}, err
	}
	feedback, err := knx.ParseGroupAddress(rd.Feedback)
	if err != nil {
		return sim.Reaction{}, err
	}

	r := sim.Reaction{
		Trigger:      trigger,
		TriggerType:  dpt.Code(rd.TriggerType),
		Feedback:     feedback,
		FeedbackType: dpt.Code(rd.FeedbackType),
		Delay:        time.Duration(rd.Delay),
		Values:       rd.Values,
		Empty:        rd.Empty,
	}
	if r.FeedbackType == 0 {
		r.FeedbackType = r.TriggerType
	}
	if rd.Fixed != nil {
		r.Fixed = rd.Fixed.Value
	}

	switch strings.ToLower(rd.Service) {
	case "", "write":
		r.Service = knx.APCIWrite
	case "response":
		r.Service = knx.APCIResponse
	default:
		return sim.Reaction{}, fmt.Errorf("%w: %q", sim.ErrUnknownService, rd.Service)
	}
	return r, r.Validate()
}
