package gc

import "fmt"

// FatalError is the panic payload for unrecoverable heap corruption and
// mutator misuse. The collector never tries to continue past one; tests
// recover it to assert on the message.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return e.Msg }

func fatalf(format string, args ...interface{}) {
	panic(&FatalError{Msg: fmt.Sprintf(format, args...)})
}

// debugf prints a diagnostic line when debug mode is on.
func (g *GC) debugf(format string, args ...interface{}) {
	if g.cfg.Debug {
		fmt.Fprintf(g.cfg.Diag, format+"\n", args...)
	}
}

func (g *GC) infof(format string, args ...interface{}) {
	fmt.Fprintf(g.cfg.Diag, format+"\n", args...)
}

func (g *GC) warnf(format string, args ...interface{}) {
	fmt.Fprintf(g.cfg.Diag, "warning: "+format+"\n", args...)
}
