package model

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/AIoTwin-Adaptive-FL-Orch/fl-simulator/internal/common"
	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense row-major numeric array of fixed shape.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

func NewTensor(shape ...int) *Tensor {
	return &Tensor{
		Shape: slices.Clone(shape),
		Data:  make([]float64, shapeSize(shape)),
	}
}

func NewTensorFromData(shape []int, data []float64) (*Tensor, error) {
	if shapeSize(shape) != len(data) {
		return nil, fmt.Errorf("tensor shape %v needs %d values, got %d", shape, shapeSize(shape), len(data))
	}

	return &Tensor{Shape: slices.Clone(shape), Data: slices.Clone(data)}, nil
}

func (t *Tensor) Size() int {
	return len(t.Data)
}

func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

func (t *Tensor) SameShape(other *Tensor) bool {
	return slices.Equal(t.Shape, other.Shape)
}

func shapeSize(shape []int) int {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

// ParamSpec names one entry of a Schema.
type ParamSpec struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

// Schema is the ordered key/shape set of a ParameterStore.
type Schema []ParamSpec

func (s Schema) String() string {
	out := ""
	for i, spec := range s {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s%v", spec.Name, spec.Shape)
	}
	return out
}

// Zeros returns a store with this schema and all values zero.
func (s Schema) Zeros() *ParameterStore {
	store := NewParameterStore()
	for _, spec := range s {
		store.Set(spec.Name, NewTensor(spec.Shape...))
	}
	return store
}

// Check reports ErrSchemaMismatch unless ps has exactly these names and shapes.
func (s Schema) Check(ps *ParameterStore) error {
	if ps == nil {
		return fmt.Errorf("%w: parameter store is nil", common.ErrSchemaMismatch)
	}
	if ps.Len() != len(s) {
		return fmt.Errorf("%w: expected %d parameters, got %d", common.ErrSchemaMismatch, len(s), ps.Len())
	}
	for _, spec := range s {
		t, found := ps.tensors[spec.Name]
		if !found {
			return fmt.Errorf("%w: missing parameter %q", common.ErrSchemaMismatch, spec.Name)
		}
		if !slices.Equal(t.Shape, spec.Shape) {
			return fmt.Errorf("%w: parameter %q has shape %v, expected %v", common.ErrSchemaMismatch,
				spec.Name, t.Shape, spec.Shape)
		}
	}
	return nil
}

// ParameterStore is an ordered mapping from parameter name to tensor.
// It is the representation of a model's trainable state exchanged between
// the coordinator and clients.
type ParameterStore struct {
	names   []string
	tensors map[string]*Tensor
}

func NewParameterStore() *ParameterStore {
	return &ParameterStore{
		names:   []string{},
		tensors: make(map[string]*Tensor),
	}
}

// Set stores t under name, keeping the insertion position of existing names.
func (ps *ParameterStore) Set(name string, t *Tensor) {
	if _, found := ps.tensors[name]; !found {
		ps.names = append(ps.names, name)
	}
	ps.tensors[name] = t
}

func (ps *ParameterStore) Get(name string) (*Tensor, bool) {
	t, found := ps.tensors[name]
	return t, found
}

func (ps *ParameterStore) Names() []string {
	return slices.Clone(ps.names)
}

func (ps *ParameterStore) Len() int {
	return len(ps.names)
}

// Clone returns a deep copy; no tensor data is shared with ps.
func (ps *ParameterStore) Clone() *ParameterStore {
	clone := &ParameterStore{
		names:   slices.Clone(ps.names),
		tensors: make(map[string]*Tensor, len(ps.tensors)),
	}
	for name, t := range ps.tensors {
		clone.tensors[name] = t.Clone()
	}
	return clone
}

// ZerosLike returns a store with the same schema and all values zero.
func (ps *ParameterStore) ZerosLike() *ParameterStore {
	zeros := NewParameterStore()
	for _, name := range ps.names {
		zeros.Set(name, NewTensor(ps.tensors[name].Shape...))
	}
	return zeros
}

func (ps *ParameterStore) Schema() Schema {
	schema := make(Schema, 0, len(ps.names))
	for _, name := range ps.names {
		schema = append(schema, ParamSpec{Name: name, Shape: slices.Clone(ps.tensors[name].Shape)})
	}
	return schema
}

// CompatibleWith checks that other has exactly the same key set and per-key
// shapes as ps. Key order is not significant.
func (ps *ParameterStore) CompatibleWith(other *ParameterStore) error {
	if other == nil {
		return fmt.Errorf("%w: parameter store is nil", common.ErrSchemaMismatch)
	}
	if len(ps.names) != len(other.names) {
		return fmt.Errorf("%w: expected %d parameters, got %d", common.ErrSchemaMismatch, len(ps.names), len(other.names))
	}
	for _, name := range ps.names {
		theirs, found := other.tensors[name]
		if !found {
			return fmt.Errorf("%w: missing parameter %q", common.ErrSchemaMismatch, name)
		}
		if !ps.tensors[name].SameShape(theirs) {
			return fmt.Errorf("%w: parameter %q has shape %v, expected %v", common.ErrSchemaMismatch,
				name, theirs.Shape, ps.tensors[name].Shape)
		}
	}
	return nil
}

// Equal reports whether both stores are compatible and bit-identical.
func (ps *ParameterStore) Equal(other *ParameterStore) bool {
	if ps.CompatibleWith(other) != nil {
		return false
	}
	for _, name := range ps.names {
		a, b := ps.tensors[name].Data, other.tensors[name].Data
		for i := range a {
			if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
				return false
			}
		}
	}
	return true
}

// AddScaled performs ps[key] += alpha * other[key] for every key.
func (ps *ParameterStore) AddScaled(alpha float64, other *ParameterStore) error {
	if err := ps.CompatibleWith(other); err != nil {
		return err
	}
	for _, name := range ps.names {
		floats.AddScaled(ps.tensors[name].Data, alpha, other.tensors[name].Data)
	}
	return nil
}

// Scale multiplies every value by alpha in place.
func (ps *ParameterStore) Scale(alpha float64) {
	for _, t := range ps.tensors {
		floats.Scale(alpha, t.Data)
	}
}

func (ps *ParameterStore) NumParams() int {
	n := 0
	for _, t := range ps.tensors {
		n += t.Size()
	}
	return n
}

// NumBytes is the size of the parameter values on the wire (float64 each).
func (ps *ParameterStore) NumBytes() int {
	return ps.NumParams() * 8
}

// AllFinite reports whether no tensor contains NaN or Inf.
func (ps *ParameterStore) AllFinite() bool {
	for _, t := range ps.tensors {
		for _, v := range t.Data {
			if !common.IsFinite(v) {
				return false
			}
		}
	}
	return true
}

type namedTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// MarshalJSON encodes the store as an ordered list of named tensors.
func (ps *ParameterStore) MarshalJSON() ([]byte, error) {
	entries := make([]namedTensor, 0, len(ps.names))
	for _, name := range ps.names {
		t := ps.tensors[name]
		entries = append(entries, namedTensor{Name: name, Shape: t.Shape, Data: t.Data})
	}
	return json.Marshal(entries)
}

func (ps *ParameterStore) UnmarshalJSON(b []byte) error {
	var entries []namedTensor
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}

	decoded := NewParameterStore()
	for _, entry := range entries {
		if _, dup := decoded.tensors[entry.Name]; dup {
			return fmt.Errorf("duplicate parameter %q", entry.Name)
		}
		t, err := NewTensorFromData(entry.Shape, entry.Data)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", entry.Name, err)
		}
		decoded.Set(entry.Name, t)
	}

	*ps = *decoded
	return nil
}
