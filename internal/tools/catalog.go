package tools

import "time"

// Options configures the built-in tools.
type Options struct {
	Shell          string        // interpreter invoked with -c; default bash
	DefaultTimeout time.Duration // foreground bash timeout; default 60s
}

// NewCodingRegistry returns the full tool set for the build stage.
func NewCodingRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(&readFileTool{})
	r.Register(&writeFileTool{})
	r.Register(&editFileTool{})
	r.Register(newBashTool(opts.Shell, opts.DefaultTimeout))
	r.Register(&todoListTool{})
	r.Register(&changeDirTool{})
	return r
}

// NewPlanningRegistry returns only the plan tool, for the verification stage.
func NewPlanningRegistry() *Registry {
	r := NewRegistry()
	r.Register(&todoListTool{})
	return r
}
