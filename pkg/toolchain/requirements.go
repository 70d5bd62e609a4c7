package toolchain

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Requirement represents a preflight prerequisite
type Requirement struct {
	Name     string
	Type     string
	Check    func(ctx context.Context) error
	Prompt   string
	DocsLink string
}

// Missing pairs an unmet requirement with the reason it failed.
type Missing struct {
	Requirement Requirement
	Err         error
}

// Checker validates that required tools are present
type Checker struct {
	required []Requirement
}

// NewChecker constructs a checker for the given requirements
func NewChecker(reqs ...Requirement) *Checker {
	return &Checker{required: reqs}
}

// CheckAll returns the requirements that are currently unmet, in order.
func (c *Checker) CheckAll(ctx context.Context) []Missing {
	var missing []Missing
	for _, req := range c.required {
		if req.Check == nil {
			continue
		}
		if err := req.Check(ctx); err != nil {
			missing = append(missing, Missing{Requirement: req, Err: err})
		}
	}
	return missing
}

// WriteReport prints one numbered block per missing requirement.
func WriteReport(w io.Writer, missing []Missing) {
	for i, m := range missing {
		req := m.Requirement
		fmt.Fprintf(w, "[%d/%d] %s (%s)\n", i+1, len(missing), req.Name, req.Type)
		if req.Prompt != "" {
			fmt.Fprintln(w, req.Prompt)
		}
		if req.DocsLink != "" {
			fmt.Fprintf(w, "Docs: %s\n", req.DocsLink)
		}
	}
}

// ToolchainRequirement wraps a Probe as a requirement.
func ToolchainRequirement(p *Probe) Requirement {
	return Requirement{
		Name: p.project,
		Type: "toolchain",
		Check: func(ctx context.Context) error {
			_, err := p.Check(ctx)
			return err
		},
		Prompt:   fmt.Sprintf("espboot drives %s to register dependencies and build firmware.", p.binary),
		DocsLink: p.docsURL,
	}
}

// GitRequirement checks that binary resolves on PATH.
func GitRequirement(binary string) Requirement {
	return binaryRequirement("Git", binary,
		"Install Git so espboot can synchronize submodules, or set sync.backend: gogit.",
		"https://git-scm.com/downloads")
}

func binaryRequirement(name, binary, prompt, docs string) Requirement {
	return Requirement{
		Name: name,
		Type: "binary",
		Check: func(context.Context) error {
			_, err := exec.LookPath(binary)
			return err
		},
		Prompt:   prompt,
		DocsLink: docs,
	}
}
