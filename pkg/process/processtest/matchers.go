package processtest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/odvcencio/espboot/pkg/process"
	"go.uber.org/mock/gomock"
)

type commandMatcher struct {
	name string
	args []string
}

// Cmd matches an Invocation by executable name and exact argument list.
func Cmd(name string, args ...string) gomock.Matcher {
	return commandMatcher{name: name, args: args}
}

func (m commandMatcher) Matches(x any) bool {
	inv, ok := x.(process.Invocation)
	if !ok {
		return false
	}
	if inv.Name != m.name {
		return false
	}
	if len(m.args) == 0 && len(inv.Args) == 0 {
		return true
	}
	return slices.Equal(inv.Args, m.args)
}

func (m commandMatcher) String() string {
	return fmt.Sprintf("invocation %q", strings.TrimSpace(m.name+" "+strings.Join(m.args, " ")))
}

// Ok is a successful Result.
func Ok() process.Result {
	return process.Result{}
}

// Exit is a Result carrying a non-zero status.
func Exit(code int) process.Result {
	return process.Result{ExitCode: code}
}
