// Package contract describes the remote editor methods a bridge may call: which ones are
// read-only, what arguments and results they take, and the calling conventions a caller
// must follow (for example committing bone changes before saving a skeletal mesh).
//
// A catalogue is a YAML document:
//
//	services:
//	  SkeletonService:
//	    description: Sockets and bones on skeletal meshes.
//	    methods:
//	      add_socket:
//	        read_only: false
//	        preconditions:
//	          - call commit_bone_changes before saving the mesh
//	        args:   {type: object, required: [skeletal_mesh_path], ...}
//	        result: {type: object, ...}
//
// args and result are JSON Schemas (draft 2020-12) written as YAML.
package contract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"editor-bridge/value"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownService = errors.New("unknown service")
	ErrUnknownMethod  = errors.New("unknown method")
	// ErrSchema is wrapped by every argument or result validation failure.
	ErrSchema = errors.New("schema violation")
)

//go:embed unreal.yaml
var unrealCatalog []byte

type document struct {
	Services map[string]serviceDoc `yaml:"services"`
}

type serviceDoc struct {
	Description string               `yaml:"description"`
	Methods     map[string]methodDoc `yaml:"methods"`
}

type methodDoc struct {
	ReadOnly      bool           `yaml:"read_only"`
	Description   string         `yaml:"description"`
	Preconditions []string       `yaml:"preconditions"`
	Args          map[string]any `yaml:"args"`
	Result        map[string]any `yaml:"result"`
}

// Catalog is an immutable set of service contracts, safe for concurrent use.
type Catalog struct {
	services map[string]*Service
}

// Service groups the methods of one remote service.
type Service struct {
	Name        string
	Description string
	methods     map[string]*Method
}

// Method is the contract of one remote method.
type Method struct {
	Service       string
	Name          string
	Description   string
	ReadOnly      bool
	Preconditions []string

	args   *jsonschema.Schema // nil when the catalogue gives no schema
	result *jsonschema.Schema
}

// Load parses and compiles a catalogue.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("contract: parse catalogue: %w", err)
	}
	if len(doc.Services) == 0 {
		return nil, errors.New("contract: catalogue defines no services")
	}

	cat := &Catalog{services: make(map[string]*Service, len(doc.Services))}
	for svcName, sd := range doc.Services {
		svc := &Service{Name: svcName, Description: sd.Description, methods: make(map[string]*Method, len(sd.Methods))}
		for name, md := range sd.Methods {
			m := &Method{
				Service:       svcName,
				Name:          name,
				Description:   md.Description,
				ReadOnly:      md.ReadOnly,
				Preconditions: md.Preconditions,
			}
			var err error
			if m.args, err = compile(svcName, name, "args", md.Args); err != nil {
				return nil, err
			}
			if m.result, err = compile(svcName, name, "result", md.Result); err != nil {
				return nil, err
			}
			svc.methods[name] = m
		}
		cat.services[svcName] = svc
	}
	return cat, nil
}

// LoadFile loads a catalogue from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}
	defer f.Close()
	return Load(f)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Load(bytes.NewReader(unrealCatalog))
})

// Default returns the built-in catalogue of Unreal editor services. It panics if the
// embedded document is broken, which the package tests rule out.
func Default() *Catalog {
	cat, err := defaultCatalog()
	if err != nil {
		panic(err)
	}
	return cat
}

func compile(service, method, part string, schema map[string]any) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("contract: %s.%s %s schema: %w", service, method, part, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://editor-bridge.local/contracts/%s/%s/%s.schema.json", service, method, part)
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("contract: %s.%s %s schema load failed: %w", service, method, part, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("contract: %s.%s %s schema compile failed: %w", service, method, part, err)
	}
	return compiled, nil
}

// Lookup returns the contract for service.method.
func (c *Catalog) Lookup(service, method string) (*Method, error) {
	svc, ok := c.services[service]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownService, service)
	}
	m, ok := svc.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w %s.%s", ErrUnknownMethod, service, method)
	}
	return m, nil
}

// Services returns every service, sorted by name.
func (c *Catalog) Services() []*Service {
	out := make([]*Service, 0, len(c.services))
	for _, svc := range c.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Methods returns the service's methods, sorted by name.
func (s *Service) Methods() []*Method {
	out := make([]*Method, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Method) String() string { return m.Service + "." + m.Name }

// ValidateArgs checks call arguments against the method's args schema. Null arguments
// are checked as an empty object, which is how they travel.
func (m *Method) ValidateArgs(args value.Value) error {
	if m.args == nil {
		return nil
	}
	raw := []byte("{}")
	if !args.IsNull() {
		var err error
		if raw, err = args.MarshalJSON(); err != nil {
			return fmt.Errorf("%s args: %w", m, err)
		}
	}
	return m.validate(m.args, "args", raw)
}

// ValidateResult checks a success payload against the method's result schema.
func (m *Method) ValidateResult(payload json.RawMessage) error {
	if m.result == nil {
		return nil
	}
	return m.validate(m.result, "result", payload)
}

func (m *Method) validate(schema *jsonschema.Schema, part string, raw []byte) error {
	doc, err := decodeJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrSchema, m, part, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrSchema, m, part, err)
	}
	return nil
}

// decodeJSON decodes into the generic form the schema validator expects, keeping
// numbers as json.Number so large integers are checked exactly.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON document")
	}
	return doc, nil
}
