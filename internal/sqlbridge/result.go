package sqlbridge

import (
	"fmt"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge/ast"
)

// Result is the outcome of one statement
type Result struct {
	// Rows holds the selected or affected rows. It is never nil.
	Rows []map[string]interface{}
	// Warnings lists the parts of the statement that were not applied
	Warnings []Warning
}

// Warning describes a fragment that was dropped instead of executed
type Warning struct {
	Clause   string `json:"clause"`
	Fragment string `json:"fragment"`
	Reason   string `json:"reason"`
}

// String formats the warning for terminals and logs
func (w Warning) String() string {
	if w.Fragment == "" {
		return fmt.Sprintf("%s: %s", w.Clause, w.Reason)
	}
	return fmt.Sprintf("%s: %q dropped (%s)", w.Clause, w.Fragment, w.Reason)
}

func emptyResult() *Result {
	return &Result{Rows: make([]map[string]interface{}, 0), Warnings: make([]Warning, 0)}
}

func warningFrom(u *ast.Unsupported) Warning {
	return Warning{Clause: u.Clause, Fragment: collapseWhitespace(u.Text), Reason: u.Reason}
}
