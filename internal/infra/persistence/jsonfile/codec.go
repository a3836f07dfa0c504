package jsonfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"familytree/pkg/domain"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed snapshot.schema.json
var schemaSource string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("snapshot.schema.json", schemaSource)
})

// SchemaError reports one JSON Schema violation at a dotted path such as
// "people[2].name".
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Encode renders a snapshot with 2-space indentation and a trailing newline.
// People are written in ascending id order with empty sets as [].
func Encode(snapshot domain.Snapshot) ([]byte, error) {
	out := snapshot.Clone()
	slices.SortFunc(out.People, func(a, b domain.Person) int { return a.ID - b.ID })
	if out.NextID < 1 {
		out.NextID = 1
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and schema-validates snapshot JSON. Relationship invariants
// are checked later, when the snapshot is imported into a store.
func Decode(data []byte) (domain.Snapshot, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	schema, err := compileSchema()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("compile snapshot schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return domain.Snapshot{}, schemaErrors(err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	if snapshot.People == nil {
		snapshot.People = []domain.Person{}
	}
	for i := range snapshot.People {
		p := &snapshot.People[i]
		p.ParentIDs = domain.NormalizeIDs(p.ParentIDs)
		p.SpouseIDs = domain.NormalizeIDs(p.SpouseIDs)
		p.ChildIDs = domain.NormalizeIDs(p.ChildIDs)
	}
	return snapshot, nil
}

// schemaErrors flattens a jsonschema validation tree into its leaf causes.
func schemaErrors(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var leaves []error
	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			leaves = append(leaves, &SchemaError{Path: jsonPointerToPath(e.InstanceLocation), Message: e.Message})
			return
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(ve)
	return fmt.Errorf("snapshot does not match schema: %w", errors.Join(leaves...))
}

func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
