package printer

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed templates
var embedded embed.FS

// functionsDir is the subdirectory holding reserved function templates.
const functionsDir = "functions"

// TemplateSet holds the code fragments of one target language, one per
// construct, keyed by file name without the ".t" extension.
type TemplateSet struct {
	name      string
	fragments map[string]string
	functions map[string]string
}

// NewTemplateSet creates a template set from in-memory fragments.
// functions maps reserved function names to their templates and may be nil.
func NewTemplateSet(name string, fragments, functions map[string]string) *TemplateSet {
	s := &TemplateSet{
		name:      name,
		fragments: make(map[string]string, len(fragments)),
		functions: make(map[string]string, len(functions)),
	}
	for k, v := range fragments {
		s.fragments[k] = v
	}
	for k, v := range functions {
		s.functions[k] = v
	}
	return s
}

// LoadTemplates reads every "*.t" file of dir in fsys. Files in the
// "functions" subdirectory become reserved function templates.
func LoadTemplates(fsys fs.FS, dir string) (*TemplateSet, error) {
	fragments, err := readFragments(fsys, dir)
	if err != nil {
		return nil, err
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}

	functions := map[string]string{}
	fnDir := path.Join(dir, functionsDir)
	if _, err := fs.Stat(fsys, fnDir); err == nil {
		if functions, err = readFragments(fsys, fnDir); err != nil {
			return nil, err
		}
	}

	return &TemplateSet{name: path.Base(dir), fragments: fragments, functions: functions}, nil
}

func readFragments(fsys fs.FS, dir string) (map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}

	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".t") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", entry.Name(), err)
		}
		out[strings.TrimSuffix(entry.Name(), ".t")] = string(data)
	}
	return out, nil
}

// Templates returns the built-in template set of a target language.
func Templates(target string) (*TemplateSet, error) {
	return LoadTemplates(embedded, path.Join("templates", target))
}

// DefaultTemplates returns the built-in set rendering Lua.
func DefaultTemplates() *TemplateSet {
	s, err := Templates("lua")
	if err != nil {
		panic("printer: embedded lua templates: " + err.Error())
	}
	return s
}

// Targets lists the built-in target languages.
func Targets() []string {
	entries, _ := fs.ReadDir(embedded, "templates")
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out
}

// Name returns the name of the set, usually the target language.
func (s *TemplateSet) Name() string {
	return s.name
}

// Fragment returns the template with the given name.
func (s *TemplateSet) Fragment(name string) (string, bool) {
	t, ok := s.fragments[name]
	return t, ok
}

// Functions returns a copy of the reserved function templates.
func (s *TemplateSet) Functions() map[string]string {
	out := make(map[string]string, len(s.functions))
	for k, v := range s.functions {
		out[k] = v
	}
	return out
}
