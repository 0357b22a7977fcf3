package command

import "github.com/adred-codev/kvserver/internal/kverr"

// Spec describes one command's static shape: its handler, its arity
// bounds (validated before queueing inside a transaction, per §4.6), and
// the two admission flags the dispatcher (C10) needs: whether it mutates
// state and must be fanned out to replicas, and whether it is one of the
// handful of commands accepted while the caller is in subscribed mode
// (§3's invariant, §4.9's admission step).
type Spec struct {
	Name        string
	MinArgs     int
	MaxArgs     int // -1 means unbounded
	Handler     func(ctx *Context, args [][]byte) Result
	IsWrite     bool
	Whitelisted bool // allowed while in subscribed mode
}

// Registry is the uniform command table: one Spec per command name, the
// "tagged sum of handler records" §9's re-architecture guidance calls
// for instead of a class hierarchy or dynamic dispatch table.
type Registry struct {
	specs map[string]*Spec
}

func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]*Spec)}
	for _, s := range builtinSpecs {
		spec := s
		r.specs[spec.Name] = &spec
	}
	return r
}

// Lookup returns the Spec for an uppercased command name, or nil if the
// command is unknown.
func (r *Registry) Lookup(name string) *Spec {
	return r.specs[name]
}

// Validate checks a command's arity against its Spec — the static
// validation §4.6 requires at MULTI-queue time, before dynamic errors
// (wrong type, out of range) ever get a chance to surface at EXEC time.
func (r *Registry) Validate(name string, args [][]byte) error {
	spec := r.specs[name]
	if spec == nil {
		return kverr.New(kverr.CategoryArity, "ERR unknown command '"+name+"'")
	}
	if len(args) < spec.MinArgs || (spec.MaxArgs >= 0 && len(args) > spec.MaxArgs) {
		return kverr.Arity(name)
	}
	return nil
}

// Dispatch validates arity and invokes the handler, the single entry
// point the session dispatcher calls for every non-transaction-control
// command.
func (r *Registry) Dispatch(ctx *Context, name string, args [][]byte) Result {
	if err := r.Validate(name, args); err != nil {
		return Err(err.Error())
	}
	return r.specs[name].Handler(ctx, args)
}

// globalRegistry is the single static command table; spec command shapes
// never vary per connection or per server instance, so one shared
// Registry (built once) serves every session, matching the "argument
// parsing is a per-variant pure function" guidance in §9.
var globalRegistry = NewRegistry()

// Lookup, Validate, and Dispatch are the package-level entry points
// session (C10) and EXEC (C6) use against the shared registry.
func Lookup(name string) *Spec                   { return globalRegistry.Lookup(name) }
func Validate(name string, args [][]byte) error  { return globalRegistry.Validate(name, args) }
func Dispatch(ctx *Context, name string, args [][]byte) Result {
	return globalRegistry.Dispatch(ctx, name, args)
}

var builtinSpecs = []Spec{
	{Name: "PING", MinArgs: 0, MaxArgs: 1, Handler: cmdPING, Whitelisted: true},
	{Name: "ECHO", MinArgs: 1, MaxArgs: 1, Handler: cmdECHO},
	{Name: "GET", MinArgs: 1, MaxArgs: 1, Handler: cmdGET},
	{Name: "SET", MinArgs: 2, MaxArgs: 4, Handler: cmdSET, IsWrite: true},
	{Name: "INCR", MinArgs: 1, MaxArgs: 1, Handler: cmdINCR, IsWrite: true},
	{Name: "TYPE", MinArgs: 1, MaxArgs: 1, Handler: cmdTYPE},
	{Name: "KEYS", MinArgs: 1, MaxArgs: 1, Handler: cmdKEYS},
	{Name: "DEL", MinArgs: 1, MaxArgs: -1, Handler: cmdDEL, IsWrite: true},
	{Name: "EXISTS", MinArgs: 1, MaxArgs: -1, Handler: cmdEXISTS},
	{Name: "EXPIRE", MinArgs: 2, MaxArgs: 2, Handler: cmdEXPIRE, IsWrite: true},
	{Name: "PEXPIRE", MinArgs: 2, MaxArgs: 2, Handler: cmdPEXPIRE, IsWrite: true},
	{Name: "TTL", MinArgs: 1, MaxArgs: 1, Handler: cmdTTL},
	{Name: "PTTL", MinArgs: 1, MaxArgs: 1, Handler: cmdPTTL},
	{Name: "PERSIST", MinArgs: 1, MaxArgs: 1, Handler: cmdPERSIST, IsWrite: true},

	{Name: "RPUSH", MinArgs: 2, MaxArgs: -1, Handler: cmdRPUSH, IsWrite: true},
	{Name: "LPUSH", MinArgs: 2, MaxArgs: -1, Handler: cmdLPUSH, IsWrite: true},
	{Name: "LPOP", MinArgs: 1, MaxArgs: 2, Handler: cmdLPOP, IsWrite: true},
	{Name: "LLEN", MinArgs: 1, MaxArgs: 1, Handler: cmdLLEN},
	{Name: "LRANGE", MinArgs: 3, MaxArgs: 3, Handler: cmdLRANGE},
	{Name: "BLPOP", MinArgs: 2, MaxArgs: 2, Handler: cmdBLPOP},

	{Name: "XADD", MinArgs: 4, MaxArgs: -1, Handler: cmdXADD, IsWrite: true},
	{Name: "XRANGE", MinArgs: 3, MaxArgs: 3, Handler: cmdXRANGE},
	{Name: "XLEN", MinArgs: 1, MaxArgs: 1, Handler: cmdXLEN},
	{Name: "XREAD", MinArgs: 3, MaxArgs: -1, Handler: cmdXREAD},

	{Name: "MULTI", MinArgs: 0, MaxArgs: 0, Handler: cmdMULTI},
	{Name: "EXEC", MinArgs: 0, MaxArgs: 0, Handler: cmdEXEC},
	{Name: "DISCARD", MinArgs: 0, MaxArgs: 0, Handler: cmdDISCARD},
	{Name: "RESET", MinArgs: 0, MaxArgs: 0, Handler: cmdRESET, Whitelisted: true},
	{Name: "QUIT", MinArgs: 0, MaxArgs: 0, Handler: cmdQUIT, Whitelisted: true},

	{Name: "SUBSCRIBE", MinArgs: 1, MaxArgs: -1, Handler: cmdSUBSCRIBE, Whitelisted: true},
	{Name: "UNSUBSCRIBE", MinArgs: 0, MaxArgs: -1, Handler: cmdUNSUBSCRIBE, Whitelisted: true},
	{Name: "PSUBSCRIBE", MinArgs: 1, MaxArgs: -1, Handler: cmdPSUBSCRIBE, Whitelisted: true},
	{Name: "PUNSUBSCRIBE", MinArgs: 0, MaxArgs: -1, Handler: cmdPUNSUBSCRIBE, Whitelisted: true},
	{Name: "SSUBSCRIBE", MinArgs: 1, MaxArgs: -1, Handler: cmdSSUBSCRIBE, Whitelisted: true},
	{Name: "SUNSUBSCRIBE", MinArgs: 0, MaxArgs: -1, Handler: cmdSUNSUBSCRIBE, Whitelisted: true},
	{Name: "PUBLISH", MinArgs: 2, MaxArgs: 2, Handler: cmdPUBLISH},

	{Name: "INFO", MinArgs: 0, MaxArgs: 1, Handler: cmdINFO},
	{Name: "REPLCONF", MinArgs: 1, MaxArgs: -1, Handler: cmdREPLCONF},
	{Name: "PSYNC", MinArgs: 2, MaxArgs: 2, Handler: cmdPSYNC},
	{Name: "WAIT", MinArgs: 2, MaxArgs: 2, Handler: cmdWAIT},
	{Name: "CONFIG GET", MinArgs: 1, MaxArgs: -1, Handler: cmdCONFIGGET},
}
