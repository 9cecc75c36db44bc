package render

import (
	"embed"
	"io/fs"
	"maps"
	"path"
	"sync"

	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-registration"
)

//go:embed templates
var templatesFS embed.FS

// Renderer renders Django style templates with pongo2. Compiled templates
// are cached by name.
type Renderer struct {
	mu      sync.RWMutex
	fsys    fs.FS
	dir     string
	globals pongo2.Context
	cache   map[string]*pongo2.Template
}

var _ registration.Renderer = (*Renderer)(nil)

// Option customizes a Renderer.
type Option func(*Renderer)

// WithFS loads templates from fsys under dir instead of the embedded set.
func WithFS(fsys fs.FS, dir string) Option {
	return func(r *Renderer) {
		if fsys != nil {
			r.fsys = fsys
			r.dir = dir
		}
	}
}

// WithGlobalData merges data into every render context. Render data wins
// over globals.
func WithGlobalData(data map[string]any) Option {
	return func(r *Renderer) {
		maps.Copy(r.globals, data)
	}
}

// New returns a renderer over the embedded activation templates.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		fsys:    templatesFS,
		dir:     "templates",
		globals: pongo2.Context{},
		cache:   map[string]*pongo2.Template{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	tpl, err := r.template(name)
	if err != nil {
		return "", err
	}

	ctx := pongo2.Context{}
	maps.Copy(ctx, r.globals)
	maps.Copy(ctx, data)

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render template "+name)
	}
	return out, nil
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	src, err := fs.ReadFile(r.fsys, path.Join(r.dir, name))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryNotFound, "template not found: "+name)
	}

	tpl, err = pongo2.FromString(string(src))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compile template "+name)
	}

	r.mu.Lock()
	r.cache[name] = tpl
	r.mu.Unlock()

	return tpl, nil
}
