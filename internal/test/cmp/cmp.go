// Package cmp wraps github.com/google/go-cmp for tests.
package cmp

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Diff returns a human readable diff between v1 and v2, comparing
// unexported fields as well.
func Diff(v1, v2 interface{}) string {
	return cmp.Diff(v1, v2, cmpopts.EquateErrors(), cmpopts.EquateEmpty(), cmp.Exporter(func(r reflect.Type) bool {
		return true
	}))
}
