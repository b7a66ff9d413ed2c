package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/navigation"
	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/registry"
)

// ErrEnteredFailed is returned by the entered hook of modules declared
// with fail_entered.
var ErrEnteredFailed = errors.New("entered hook failed on purpose")

// Report is the outcome of a run.
type Report struct {
	Service string       `yaml:"service" json:"service"`
	Initial []string     `yaml:"initial_hooks,omitempty" json:"initial_hooks,omitempty"`
	Steps   []StepReport `yaml:"steps" json:"steps"`
}

// StepReport records one step and the state it left behind.
type StepReport struct {
	Index     int                      `yaml:"index" json:"index"`
	Step      string                   `yaml:"step" json:"step"`
	Status    string                   `yaml:"status" json:"status"`
	Committed bool                     `yaml:"committed" json:"committed"`
	Error     string                   `yaml:"error,omitempty" json:"error,omitempty"`
	Payload   any                      `yaml:"payload,omitempty" json:"payload,omitempty"`
	Hooks     []string                 `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Modals    []string                 `yaml:"modals,omitempty" json:"modals,omitempty"`
	Current   string                   `yaml:"current" json:"current"`
	History   []navigation.HistoryItem `yaml:"history" json:"history"`

	Result navigation.Result `yaml:"-" json:"-"`
}

// journal collects hook calls of one run.
type journal struct {
	mu    sync.Mutex
	lines []string
}

func (j *journal) add(id, hook string) {
	j.mu.Lock()
	j.lines = append(j.lines, id+":"+hook)
	j.mu.Unlock()
}

func (j *journal) take() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.lines
	j.lines = nil
	return out
}

// actor is the participant built for a scenario module.
type actor struct {
	module  Module
	journal *journal
}

func (a *actor) Hooks() navigation.Hooks {
	return navigation.Hooks{
		Leaving: func(_ context.Context, t *navigation.Transition) error {
			a.journal.add(a.module.ID, "leaving")
			if a.module.CancelLeaving {
				t.Cancel()
			}
			return nil
		},
		Entering: func(_ context.Context, t *navigation.Transition) error {
			a.journal.add(a.module.ID, "entering")
			if a.module.CancelEntering {
				t.Cancel()
			}
			if a.module.Payload != nil {
				t.SetPayload(a.module.Payload)
			}
			return nil
		},
		Left: func(*navigation.Transition) error {
			a.journal.add(a.module.ID, "left")
			return nil
		},
		Entered: func(*navigation.Transition) error {
			a.journal.add(a.module.ID, "entered")
			if a.module.FailEntered {
				return ErrEnteredFailed
			}
			return nil
		},
		Dispose: func() {
			a.journal.add(a.module.ID, "dispose")
		},
	}
}

// Build creates the registry and the uninitialized service of f. Settings
// made in the file override opts.
func (f *File) Build(opts ...navigation.ServiceOption) (*navigation.Service, error) {
	svc, _, err := f.build(opts)
	return svc, err
}

func (f *File) build(opts []navigation.ServiceOption) (*navigation.Service, *journal, error) {
	j := &journal{}
	var ropts []registry.Option
	if f.DefaultLifetime != "" {
		lt, err := registry.ParseLifetime(f.DefaultLifetime)
		if err != nil {
			return nil, nil, err
		}
		ropts = append(ropts, registry.WithDefaultLifetime(lt))
	}
	modules := registry.New[navigation.Participant](ropts...)
	for _, m := range f.Modules {
		var mopts []registry.ModuleOption
		if m.Lifetime != "" {
			lt, err := registry.ParseLifetime(m.Lifetime)
			if err != nil {
				return nil, nil, fmt.Errorf("module %q: %w", m.ID, err)
			}
			mopts = append(mopts, registry.WithLifetime(lt))
		}
		err := modules.Register(m.ID, func() (any, navigation.Participant, error) {
			return m.ID, &actor{module: m, journal: j}, nil
		}, mopts...)
		if err != nil {
			return nil, nil, err
		}
	}

	all := append(make([]navigation.ServiceOption, 0, len(opts)+2), opts...)
	if f.Service != "" {
		all = append(all, navigation.WithID(f.Service))
	}
	if f.DisposeOnRemove != nil {
		all = append(all, navigation.WithDisposeOnRemove(*f.DisposeOnRemove))
	}
	return navigation.NewService(modules, all...), j, nil
}

// runner walks the steps of one scenario.
type runner struct {
	svc        *navigation.Service
	navigators map[navigation.Participant]*navigation.Navigator
	modals     []pendingModal
}

type pendingModal struct {
	target string
	done   <-chan navigation.Result
}

// Run builds the service of f, initializes it and executes every step. The
// returned service is left running; the caller closes it. Step outcomes,
// including failures, go into the report. Run itself fails only when the
// scenario cannot start.
func Run(ctx context.Context, f *File, opts ...navigation.ServiceOption) (*Report, *navigation.Service, error) {
	steps, err := f.ParseSteps()
	if err != nil {
		return nil, nil, err
	}
	svc, j, err := f.build(opts)
	if err != nil {
		return nil, nil, err
	}

	r := &runner{svc: svc, navigators: make(map[navigation.Participant]*navigation.Navigator)}
	report := &Report{Service: svc.ID()}

	if err := svc.Initialize(ctx, f.Initial); err != nil && !wayfinder.IsHookFailure(err) {
		_ = svc.Close()
		return nil, nil, fmt.Errorf("initialize %q: %w", f.Initial, err)
	}
	report.Initial = j.take()
	if err := r.saveCurrent(); err != nil {
		_ = svc.Close()
		return nil, nil, err
	}

	for i, st := range steps {
		res := r.do(ctx, st)
		if err := r.saveCurrent(); err != nil {
			_ = svc.Close()
			return nil, nil, err
		}

		sr := StepReport{
			Index:     i + 1,
			Step:      st.Line,
			Status:    res.Status.String(),
			Committed: res.Committed,
			Payload:   res.Payload,
			Hooks:     j.take(),
			Modals:    r.settled(),
			Current:   svc.CurrentID(),
			History:   svc.History(),
			Result:    res,
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		report.Steps = append(report.Steps, sr)
	}

	r.close()
	return report, svc, nil
}

// navigator returns the navigator of the current participant.
func (r *runner) navigator() *navigation.Navigator {
	self := r.svc.CurrentItem().Participant
	nav, ok := r.navigators[self]
	if !ok {
		nav = navigation.NewNavigator(r.svc, self)
		r.navigators[self] = nav
	}
	return nav
}

func (r *runner) do(ctx context.Context, st Step) navigation.Result {
	nav := r.navigator()
	var opts []navigation.NavigateOption
	if st.Params != nil {
		opts = append(opts, navigation.WithParams(st.Params))
	}

	switch st.Op {
	case OpNavigate:
		return nav.Navigate(ctx, st.Target, opts...)
	case OpModal:
		res, done := nav.OpenModal(ctx, st.Target, opts...)
		if done != nil {
			r.modals = append(r.modals, pendingModal{target: st.Target, done: done})
		}
		return res
	case OpBack:
		return nav.Back(ctx, navigation.WithSteps(st.Steps))
	case OpForward:
		return nav.Forward(ctx, navigation.WithSteps(st.Steps))
	case OpReturn:
		var payload any
		if st.Payload != "" {
			payload = st.Payload
		}
		return nav.ReturnModal(ctx, payload)
	case OpClear:
		return nav.ClearHistory(ctx)
	default:
		return navigation.Failed(fmt.Errorf("%w: %s", ErrBadStep, st.Op))
	}
}

// settled collects the modal flows that resolved during the last step.
func (r *runner) settled() []string {
	var out []string
	open := r.modals[:0]
	for _, m := range r.modals {
		select {
		case res := <-m.done:
			line := fmt.Sprintf("%s: %s", m.target, res.Status)
			if res.Payload != nil {
				line += fmt.Sprintf(" %v", res.Payload)
			}
			if res.Err != nil {
				line += fmt.Sprintf(" (%v)", res.Err)
			}
			out = append(out, line)
		default:
			open = append(open, m)
		}
	}
	r.modals = open
	return out
}

// saveCurrent applies save_current to the participant now current.
func (r *runner) saveCurrent() error {
	a, ok := r.svc.CurrentItem().Participant.(*actor)
	if !ok || !a.module.SaveCurrent {
		return nil
	}
	nav := r.navigator()
	if nav.SaveCurrent() {
		return nil
	}
	return nav.SetSaveCurrent(true)
}

func (r *runner) close() {
	for _, nav := range r.navigators {
		nav.Close()
	}
}
