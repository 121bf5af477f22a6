package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Change types reported by Compare
const (
	AddedRoute    = "added_route"
	RemovedRoute  = "removed_route"
	AddedMethod   = "added_method"
	RemovedMethod = "removed_method"
	ModifiedRoute = "modified_route"
)

// Change is one difference between two contracts
type Change struct {
	Type    string   `json:"type"`
	Path    string   `json:"path"`
	Method  string   `json:"method,omitempty"`
	Methods []string `json:"methods,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Message string   `json:"message"`
}

// Compare lists what changed going from prev to next. Paths are reported in
// next's order, then removed paths in prev's order.
func Compare(prev, next *Contract) []Change {
	var changes []Change

	for _, p := range next.Paths() {
		if !prev.HasPath(p) {
			methods := next.Methods(p)
			changes = append(changes, Change{
				Type:    AddedRoute,
				Path:    p,
				Methods: methods,
				Message: fmt.Sprintf("New route %s [%s]", p, strings.Join(methods, ", ")),
			})
			continue
		}
		for _, m := range next.Methods(p) {
			newEntry, _ := next.Get(p, m)
			oldEntry, ok := prev.Get(p, m)
			if !ok {
				changes = append(changes, Change{
					Type: AddedMethod, Path: p, Method: m,
					Message: fmt.Sprintf("New method %s on %s", m, p),
				})
				continue
			}
			if fields := changedFields(oldEntry, newEntry); len(fields) > 0 {
				changes = append(changes, Change{
					Type: ModifiedRoute, Path: p, Method: m, Fields: fields,
					Message: fmt.Sprintf("%s %s changed: %s", m, p, strings.Join(fields, ", ")),
				})
			}
		}
		for _, m := range prev.Methods(p) {
			if _, ok := next.Get(p, m); !ok {
				changes = append(changes, Change{
					Type: RemovedMethod, Path: p, Method: m,
					Message: fmt.Sprintf("Method %s removed from %s", m, p),
				})
			}
		}
	}

	for _, p := range prev.Paths() {
		if !next.HasPath(p) {
			methods := prev.Methods(p)
			changes = append(changes, Change{
				Type:    RemovedRoute,
				Path:    p,
				Methods: methods,
				Message: fmt.Sprintf("Route %s removed [%s]", p, strings.Join(methods, ", ")),
			})
		}
	}
	return changes
}

// changedFields returns the top-level entry members whose JSON differs
func changedFields(a, b *Entry) []string {
	am, errA := entryFields(a)
	bm, errB := entryFields(b)
	if errA != nil || errB != nil {
		return []string{"entry"}
	}

	keys := map[string]bool{}
	for k := range am {
		keys[k] = true
	}
	for k := range bm {
		keys[k] = true
	}

	var changed []string
	for k := range keys {
		if !bytes.Equal(am[k], bm[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func entryFields(e *Entry) (map[string]json.RawMessage, error) {
	if e == nil {
		return map[string]json.RawMessage{}, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Issue types reported by CheckRoutes
const (
	IssueNewRoute      = "new_route"
	IssueRemovedRoute  = "removed_route"
	IssueNewMethod     = "new_method"
	IssueRemovedMethod = "removed_method"
)

// Issue is a mismatch between the live route table and a contract
type Issue struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Method  string `json:"method,omitempty"`
	Message string `json:"message"`
}

// RouteKey identifies one live (path, method)
type RouteKey struct {
	Path   string
	Method string
}

// CheckRoutes compares the live routes against c
func CheckRoutes(c *Contract, live []RouteKey) []Issue {
	liveMethods := map[string][]string{}
	var livePaths []string
	for _, r := range live {
		p := NormalizePath(r.Path)
		if _, ok := liveMethods[p]; !ok {
			livePaths = append(livePaths, p)
		}
		liveMethods[p] = append(liveMethods[p], strings.ToUpper(r.Method))
	}

	var issues []Issue
	for _, p := range livePaths {
		if !c.HasPath(p) {
			issues = append(issues, Issue{
				Type: IssueNewRoute, Path: p,
				Message: fmt.Sprintf("Route %s is not documented in the contract", p),
			})
			continue
		}
		for _, m := range liveMethods[p] {
			if _, ok := c.Get(p, m); !ok {
				issues = append(issues, Issue{
					Type: IssueNewMethod, Path: p, Method: m,
					Message: fmt.Sprintf("Method %s on %s is not documented", m, p),
				})
			}
		}
		for _, m := range c.Methods(p) {
			if !contains(liveMethods[p], m) {
				issues = append(issues, Issue{
					Type: IssueRemovedMethod, Path: p, Method: m,
					Message: fmt.Sprintf("Documented method %s on %s no longer exists", m, p),
				})
			}
		}
	}

	for _, p := range c.Paths() {
		if _, ok := liveMethods[p]; !ok {
			issues = append(issues, Issue{
				Type: IssueRemovedRoute, Path: p,
				Message: fmt.Sprintf("Documented route %s no longer exists", p),
			})
		}
	}
	return issues
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
