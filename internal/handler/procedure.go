package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/auth"
)

// maxInputBytes bounds a mutation body.
const maxInputBytes = 1 << 20

// Kind says which HTTP method a procedure answers to.
type Kind int

const (
	// Query procedures are read-only and called with GET ?input=<json>.
	Query Kind = iota
	// Mutation procedures write and are called with POST and a JSON body.
	Mutation
)

func (k Kind) method() string {
	if k == Mutation {
		return http.MethodPost
	}
	return http.MethodGet
}

// ProcedureFunc runs a procedure. input is the raw JSON the caller sent
// (nil when none was sent). The returned value becomes result.data.
type ProcedureFunc func(ctx context.Context, input json.RawMessage) (any, error)

type procedure struct {
	kind      Kind
	protected bool
	run       ProcedureFunc
}

// Procedures is the Procedure Router: a table of named calls served under
// one chi route. Protected procedures pass through the Authorization Gate
// before they run; public ones never touch it.
type Procedures struct {
	procs  map[string]*procedure
	gate   *auth.Gate
	logger *slog.Logger
}

// NewProcedures creates an empty router.
func NewProcedures(gate *auth.Gate, logger *slog.Logger) *Procedures {
	return &Procedures{
		procs:  make(map[string]*procedure),
		gate:   gate,
		logger: logger,
	}
}

// PublicQuery registers a query anyone may call.
func (p *Procedures) PublicQuery(name string, fn ProcedureFunc) {
	p.register(name, &procedure{kind: Query, run: fn})
}

// Query registers a query behind the Authorization Gate.
func (p *Procedures) Query(name string, fn ProcedureFunc) {
	p.register(name, &procedure{kind: Query, protected: true, run: fn})
}

// Mutation registers a mutation behind the Authorization Gate.
func (p *Procedures) Mutation(name string, fn ProcedureFunc) {
	p.register(name, &procedure{kind: Mutation, protected: true, run: fn})
}

// Alias makes alias call the same procedure as target.
func (p *Procedures) Alias(alias, target string) {
	proc, ok := p.procs[target]
	if !ok {
		panic(fmt.Sprintf("handler: alias %q targets unknown procedure %q", alias, target))
	}
	p.register(alias, proc)
}

// AliasNamespace exposes every "target.*" procedure as "alias.*" too.
func (p *Procedures) AliasNamespace(alias, target string) {
	prefix := target + "."
	for _, name := range p.Names() {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			p.register(alias+"."+rest, p.procs[name])
		}
	}
}

// Names lists the registered procedure names, sorted.
func (p *Procedures) Names() []string {
	names := make([]string, 0, len(p.procs))
	for name := range p.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Procedures) register(name string, proc *procedure) {
	if _, dup := p.procs[name]; dup {
		panic(fmt.Sprintf("handler: procedure %q registered twice", name))
	}
	p.procs[name] = proc
}

// ServeHTTP dispatches /{procedure}. Mount it with the name as a chi URL
// parameter called "procedure".
//
// HTTP: GET  /api/{procedure}?input=<json>  (queries)
//
//	POST /api/{procedure}               (mutations, JSON body)
func (p *Procedures) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "procedure")
	proc, ok := p.procs[name]
	if !ok {
		writeErrorCode(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("No procedure found on path %q", name), "")
		return
	}

	if r.Method != proc.kind.method() {
		w.Header().Set("Allow", proc.kind.method())
		writeErrorCode(w, http.StatusMethodNotAllowed, CodeMethodNotSupported,
			fmt.Sprintf("Procedure %q must be called with %s", name, proc.kind.method()), "")
		return
	}

	ctx := r.Context()
	if proc.protected {
		session, err := p.gate.Authenticate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx = auth.WithSession(ctx, session)
	}

	input, err := readInput(w, r, proc.kind)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := proc.run(ctx, input)
	if err != nil {
		if !errors.As(err, new(*apperror.AppError)) {
			p.logger.Error("procedure failed",
				slog.String("procedure", name),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err)
		return
	}

	writeResult(w, data)
}

func readInput(w http.ResponseWriter, r *http.Request, kind Kind) (json.RawMessage, error) {
	var raw []byte
	if kind == Query {
		raw = []byte(r.URL.Query().Get("input"))
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInputBytes))
		if err != nil {
			return nil, apperror.ValidationFailed("input", "request body is too large or unreadable")
		}
		raw = body
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, apperror.ValidationFailed("input", "input is not valid JSON")
	}
	return raw, nil
}

// bind adapts a typed function to a ProcedureFunc. Missing or null input
// decodes to the zero In.
func bind[In, Out any](fn func(ctx context.Context, in In) (Out, error)) ProcedureFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in In
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, inputError(err)
			}
		}
		return fn(ctx, in)
	}
}

func inputError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperror.ValidationFailed(typeErr.Field,
			fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type))
	}
	return apperror.ValidationFailed("input", "input does not match the procedure's shape")
}

// sessionUserID returns the Gate's user, or "" on public procedures.
func sessionUserID(ctx context.Context) string {
	id, _ := auth.UserIDFromContext(ctx)
	return id
}
