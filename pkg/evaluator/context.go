package evaluator

import "sort"

// Environment holds the variable bindings of the interpreter.
//
// Variables live in a single global scope shared by every interpreted tree,
// so a value assigned by one property is visible to the others.
type Environment struct {
	bindings map[string]any
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{bindings: make(map[string]any)}
}

// Set binds name to value. Binding nil removes the variable.
func (e *Environment) Set(name string, value any) {
	if value == nil {
		delete(e.bindings, name)
		return
	}
	e.bindings[name] = value
}

// Get retrieves a variable binding.
func (e *Environment) Get(name string) (any, bool) {
	value, ok := e.bindings[name]
	return value, ok
}

// Delete removes a variable binding.
func (e *Environment) Delete(name string) {
	delete(e.bindings, name)
}

// Names returns the bound variable names in lexical order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound variables.
func (e *Environment) Len() int {
	return len(e.bindings)
}

// Clear removes all bindings.
func (e *Environment) Clear() {
	clear(e.bindings)
}
