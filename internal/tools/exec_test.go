package tools

import "context"

// fakeRunner records invocations and answers with a programmable hook.
type fakeRunner struct {
	calls [][]string
	run   func(name string, args []string) (stdout, stderr string, err error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.run == nil {
		return nil, nil, nil
	}
	out, errs, err := f.run(name, args)
	return []byte(out), []byte(errs), err
}
