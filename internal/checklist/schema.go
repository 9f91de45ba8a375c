package checklist

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError reports a checklist document that does not match the schema.
type SchemaError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("checklist schema: %s", e.Message)
	}
	return fmt.Sprintf("checklist schema: %s: %s", e.Field, e.Message)
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	validateMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile checklist schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Checklist"))
	})
	return schemaCtx, schemaDef, schemaErr
}

// validate checks a decoded document against #Checklist.
func validate(doc any) error {
	if doc == nil {
		return &SchemaError{Message: "document is empty"}
	}

	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	validateMu.Lock()
	defer validateMu.Unlock()

	v := ctx.Encode(doc)
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first CUE error and the path it points at.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &SchemaError{
		Field:   strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}
