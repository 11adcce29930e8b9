package builder

import (
	_ "embed"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/provsync/internal/prov"
)

//go:embed schema.cue
var schemaSource string

// CompileError is a record declaration error, positioned in CUE source when
// the position is known.
type CompileError struct {
	Record  string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	prefix := e.Field
	if e.Record != "" {
		prefix = "record " + e.Record + ": " + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// CompileRecord parses one CUE record value into a RecordSpec.
//
// The value is unified with the closed #Record schema, so unknown fields are
// errors. The record id is the "id" field or, when absent, the value's label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`record: r1: {nodes: {...}, edges: [...]}`)
//	spec, err := CompileRecord(v.LookupPath(cue.ParsePath("record.r1")))
//
// The spec is also built once so graph errors carry the record's position.
func CompileRecord(v cue.Value) (*RecordSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Record")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var spec RecordSpec
	if err := unified.Decode(&spec); err != nil {
		return nil, formatCUEError(err)
	}

	label := recordLabel(v)
	switch {
	case spec.ID == "" && label == "":
		return nil, &CompileError{Field: "id", Message: "record id is required", Pos: v.Pos()}
	case spec.ID == "":
		spec.ID = label
	case label != "" && spec.ID != label:
		return nil, &CompileError{
			Record:  label,
			Field:   "id",
			Message: fmt.Sprintf("id %q does not match label %q", spec.ID, label),
			Pos:     v.LookupPath(cue.ParsePath("id")).Pos(),
		}
	}

	if _, err := Build(spec, spec.ID); err != nil {
		var perr *prov.Error
		if errors.As(err, &perr) {
			return nil, &CompileError{Record: spec.ID, Field: "graph", Message: perr.Message, Pos: v.Pos()}
		}
		return nil, err
	}
	return &spec, nil
}

// CompileRecords compiles every field of the top-level "record" struct.
// All record errors are collected.
func CompileRecords(root cue.Value) ([]RecordSpec, error) {
	recordsVal := root.LookupPath(cue.ParsePath("record"))
	if !recordsVal.Exists() {
		return nil, nil
	}

	iter, err := recordsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var (
		specs []RecordSpec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileRecord(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, *spec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	SortSpecs(specs)
	return specs, nil
}

func recordLabel(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	last := sels[len(sels)-1]
	if !last.IsString() {
		return ""
	}
	return last.Unquoted()
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
