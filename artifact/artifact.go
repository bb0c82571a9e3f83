//
// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package artifact encodes task results and model parameters as opaque,
// versioned strings that survive a round trip without loss.
//
// An encoded artifact is the base64 form of a gob envelope carrying a format
// version, the artifact kind and the gob-encoded payload.
package artifact

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"errors"
	"fmt"
)

// Version is the envelope format written by Encode.
const Version = 1

var (
	// ErrCorrupt is returned when an encoded artifact cannot be parsed.
	ErrCorrupt = errors.New("corrupt artifact")
	// ErrKind is returned when an artifact of another kind was expected.
	ErrKind = errors.New("unexpected artifact kind")
)

// Kind identifies the payload of an artifact.
type Kind int

// Artifact kinds.
const (
	KindUnknown Kind = iota
	KindScalar
	KindRecords
	KindModel
	KindGradient
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindRecords:
		return "records"
	case KindModel:
		return "model"
	case KindGradient:
		return "gradient"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Scalar is a single released number.
type Scalar struct {
	Value float64
}

// FieldValue is one field of a record: either a number or a category.
type FieldValue struct {
	Number   *float64 `json:"number,omitempty"`
	Category *string  `json:"category,omitempty"`
}

// Num returns a numeric FieldValue.
func Num(v float64) FieldValue {
	return FieldValue{Number: &v}
}

// Cat returns a categorical FieldValue.
func Cat(c string) FieldValue {
	return FieldValue{Category: &c}
}

// gobFieldValue carries explicit presence flags because gob omits fields
// holding zero values, which would turn Num(0) into an empty FieldValue.
type gobFieldValue struct {
	HasNumber   bool
	Number      float64
	HasCategory bool
	Category    string
}

// GobEncode encodes FieldValue.
func (f FieldValue) GobEncode() ([]byte, error) {
	var enc gobFieldValue
	if f.Number != nil {
		enc.HasNumber, enc.Number = true, *f.Number
	}
	if f.Category != nil {
		enc.HasCategory, enc.Category = true, *f.Category
	}
	return encode(enc)
}

// GobDecode decodes FieldValue.
func (f *FieldValue) GobDecode(data []byte) error {
	var enc gobFieldValue
	if err := decode(&enc, data); err != nil {
		return err
	}
	*f = FieldValue{}
	if enc.HasNumber {
		f.Number = &enc.Number
	}
	if enc.HasCategory {
		f.Category = &enc.Category
	}
	return nil
}

// Records is a list of released records.
type Records struct {
	Rows []map[string]FieldValue
}

type envelope struct {
	Version int
	Kind    Kind
	Payload []byte
}

// KindOf returns the kind of v, which must be one of the artifact types or a
// pointer to one.
func KindOf(v any) Kind {
	switch v.(type) {
	case Scalar, *Scalar:
		return KindScalar
	case Records, *Records:
		return KindRecords
	case Model, *Model:
		return KindModel
	case Gradient, *Gradient:
		return KindGradient
	default:
		return KindUnknown
	}
}

// Encode returns the string form of v.
func Encode(v any) (string, error) {
	kind := KindOf(v)
	if kind == KindUnknown {
		return "", fmt.Errorf("Encode: %w: %T", ErrKind, v)
	}
	payload, err := encode(v)
	if err != nil {
		return "", fmt.Errorf("Encode: couldn't encode %s payload: %w", kind, err)
	}
	raw, err := encode(envelope{Version: Version, Kind: kind, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("Encode: couldn't encode envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Peek returns the kind of an encoded artifact without decoding its payload.
func Peek(s string) (Kind, error) {
	env, err := open(s)
	if err != nil {
		return KindUnknown, err
	}
	return env.Kind, nil
}

// DecodeScalar decodes a Scalar artifact.
func DecodeScalar(s string) (Scalar, error) {
	var out Scalar
	return out, decodeAs(s, KindScalar, &out)
}

// DecodeRecords decodes a Records artifact.
func DecodeRecords(s string) (Records, error) {
	var out Records
	return out, decodeAs(s, KindRecords, &out)
}

// DecodeModel decodes a Model artifact.
func DecodeModel(s string) (Model, error) {
	var out Model
	return out, decodeAs(s, KindModel, &out)
}

// DecodeGradient decodes a Gradient artifact.
func DecodeGradient(s string) (Gradient, error) {
	var out Gradient
	return out, decodeAs(s, KindGradient, &out)
}

func open(s string) (envelope, error) {
	var env envelope
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return env, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := decode(&env, raw); err != nil {
		return env, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Version != Version {
		return env, fmt.Errorf("%w: version %d, want %d", ErrCorrupt, env.Version, Version)
	}
	return env, nil
}

func decodeAs(s string, want Kind, v any) error {
	env, err := open(s)
	if err != nil {
		return err
	}
	if env.Kind != want {
		return fmt.Errorf("%w: got %s, want %s", ErrKind, env.Kind, want)
	}
	if err := decode(v, env.Payload); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrCorrupt, want, err)
	}
	return nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes(), err
}

func decode(v any, data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
