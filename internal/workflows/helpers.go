package workflows

import (
	"reflect"
	"strings"

	"github.com/vk/fmriprep-go/internal/engine"
)

// prefix normalizes a subject label to carry the sub- prefix. Idempotent.
func prefix(subID string) string {
	if strings.HasPrefix(subID, "sub-") {
		return subID
	}
	return strings.Join([]string{"sub", subID}, "-")
}

// prefixT adapts prefix for use as an edge transform.
func prefixT(value any) any {
	subID, _ := value.(string)
	return prefix(subID)
}

// pop returns the first element of a slice or array, or the value unchanged
// when it is a scalar. It adapts multi-valued upstream ports to
// single-valued downstream ports.
func pop(value any) any {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return nil
		}
		return rv.Index(0).Interface()
	default:
		return value
	}
}

// connector accumulates port connections on a workflow, keeping the first
// error so builders can wire long connection lists without per-call checks.
type connector struct {
	wf  *engine.Workflow
	err error
}

func (c *connector) connect(from, fromPort, to, toPort string) {
	c.connectWith(from, fromPort, to, toPort, nil)
}

func (c *connector) connectWith(from, fromPort, to, toPort string, transform engine.Transform) {
	if c.err != nil {
		return
	}
	c.err = c.wf.ConnectWith(from, fromPort, to, toPort, transform)
}
