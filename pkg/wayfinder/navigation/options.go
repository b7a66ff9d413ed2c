package navigation

// NavigateOption configures a single navigation request.
type NavigateOption func(*navOptions)

type navOptions struct {
	params map[string]any
	sender Participant
	steps  int
}

func collectOptions(opts []NavigateOption) navOptions {
	o := navOptions{steps: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithParams merges params into the navigation parameters handed to hooks.
func WithParams(params map[string]any) NavigateOption {
	return func(o *navOptions) {
		for k, v := range params {
			setParam(o, k, v)
		}
	}
}

// WithParam sets one navigation parameter.
func WithParam(key string, value any) NavigateOption {
	return func(o *navOptions) {
		setParam(o, key, value)
	}
}

// WithSender records the participant asking for the navigation.
// Navigators set it to their own participant.
func WithSender(p Participant) NavigateOption {
	return func(o *navOptions) {
		o.sender = p
	}
}

// WithSteps sets how many entries a back or forward navigation moves.
// Other navigation kinds ignore it.
func WithSteps(n int) NavigateOption {
	return func(o *navOptions) {
		o.steps = n
	}
}

func setParam(o *navOptions, key string, value any) {
	if o.params == nil {
		o.params = make(map[string]any)
	}
	o.params[key] = value
}
