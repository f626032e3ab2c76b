package metadata

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type schemaDocument struct {
	Entities []entityDocument `yaml:"entities"`
}

type entityDocument struct {
	Name       string          `yaml:"name"`
	Table      string          `yaml:"table"`
	Identifier string          `yaml:"identifier"`
	IDStrategy IDStrategy      `yaml:"id_strategy"`
	Fields     []fieldDocument `yaml:"fields"`
}

type fieldDocument struct {
	Name             string `yaml:"name"`
	Column           string `yaml:"column"`
	Association      string `yaml:"association"`
	JoinColumn       string `yaml:"join_column"`
	ReferencedColumn string `yaml:"referenced_column"`
	MappedBy         string `yaml:"mapped_by"`
	Fake             string `yaml:"fake"`
}

// LoadYAML reads a schema document:
//
//	entities:
//	  - name: Post
//	    fields:
//	      - name: title
//	        fake: sentence
//	      - name: author
//	        association: Author
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc schemaDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "metadata: unable to decode schema")
	}
	registry := NewRegistry()
	for _, ed := range doc.Entities {
		if ed.Name == "" {
			return nil, errors.New("metadata: entity without name")
		}
		e := NewEntity(ed.Name)
		if ed.Table != "" {
			e.WithTable(ed.Table)
		}
		if ed.Identifier != "" || ed.IDStrategy != "" {
			identifier, strategy := ed.Identifier, ed.IDStrategy
			if identifier == "" {
				identifier = e.Identifier
			}
			if strategy == "" {
				strategy = e.IDStrategy
			}
			switch strategy {
			case IDAuto, IDUUID, IDULID, IDAssigned:
			default:
				return nil, errors.Errorf("metadata: entity %q has unknown id_strategy %q", ed.Name, strategy)
			}
			e.WithIdentifier(identifier, strategy)
		}
		for _, fd := range ed.Fields {
			if fd.Name == "" {
				return nil, errors.Errorf("metadata: entity %q has a field without name", ed.Name)
			}
			if fd.Association == "" {
				e.Column(fd.Name, fd.Column)
				e.WithFake(fd.Name, fd.Fake)
				continue
			}
			var opts []AssociationOption
			switch {
			case fd.MappedBy != "":
				opts = append(opts, MappedBy(fd.MappedBy))
			case fd.JoinColumn != "":
				opts = append(opts, JoinColumn(fd.JoinColumn))
			}
			if fd.ReferencedColumn != "" {
				opts = append(opts, ReferencedColumn(fd.ReferencedColumn))
			}
			e.Association(fd.Name, fd.Association, opts...)
			e.WithFake(fd.Name, fd.Fake)
		}
		registry.Register(e)
	}
	return registry, nil
}

func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "metadata: unable to open schema")
	}
	defer f.Close()
	return LoadYAML(f)
}
