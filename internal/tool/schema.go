// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/voxerr"
)

// Schema is a tool's external contract: a JSON Schema document plus a
// compiled validator. Per §9's design note, one schema library handles
// both parse->typed-value at the RPC boundary and agent structured output;
// invopop/jsonschema generates the document from a Go struct, and
// santhosh-tekuri/jsonschema/v6 validates instances against it (invopop is
// generate-only, it has no validator).
type Schema struct {
	Document map[string]any
	compiled *jsonschema.Schema
}

// FromStruct derives a Schema from a Go struct's type, reflecting its field
// tags into a JSON Schema document for native tool arguments.
func FromStruct(v any) (*Schema, error) {
	reflector := &invopop.Reflector{DoNotReference: true, ExpandedStruct: true}
	doc := reflector.Reflect(v)

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "tool.schema_marshal", "failed to marshal generated schema", err)
	}

	var asMap map[string]any
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "tool.schema_remarshal", "failed to decode generated schema", err)
	}

	return compile(asMap)
}

// FromDocument compiles a Schema from a raw JSON-Schema document, used for
// hand-authored schemas (e.g. remote-function tools whose arguments are
// declared positionally rather than via a Go struct).
func FromDocument(doc map[string]any) (*Schema, error) {
	return compile(doc)
}

func compile(doc map[string]any) (*Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "tool.schema_marshal", "failed to marshal schema document", err)
	}

	compiler := jsonschema.NewCompiler()
	unmarshalled, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "tool.schema_parse", "failed to parse schema document", err)
	}

	const resourceName = "schema.json"
	if err := compiler.AddResource(resourceName, unmarshalled); err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "tool.schema_add_resource", "failed to register schema resource", err)
	}

	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, voxerr.Wrap(voxerr.Internal, "tool.schema_compile", "failed to compile schema", err)
	}

	return &Schema{Document: doc, compiled: compiled}, nil
}

// Validate parses raw JSON into instance and validates it against the
// schema, the "parse->typed-value" contract named in §9. On success it
// returns the decoded instance as a generic value (map[string]any / slice /
// scalar); callers that need a typed struct decode again with
// encoding/json or mapstructure.
func (s *Schema) Validate(raw json.RawMessage) (any, error) {
	var instance any
	if len(raw) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, voxerr.Wrap(voxerr.InvalidArgument, "tool.invalid_json", "arguments are not valid JSON", err)
	}

	if s.compiled == nil {
		return instance, nil
	}

	if err := s.compiled.Validate(instance); err != nil {
		return nil, voxerr.Wrap(voxerr.InvalidArgument, "tool.schema_validation_failed", fmt.Sprintf("arguments failed schema validation: %v", err), err)
	}

	return instance, nil
}
